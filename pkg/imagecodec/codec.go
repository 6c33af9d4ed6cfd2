package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
)

// DefaultQuality matches the quality most imaging libraries use when none is given.
const DefaultQuality = 75

var ErrDecode = errors.New("decode error")

type ICodec interface {
	Decode(payload string) (image.Image, error)
	DecodeBytes(data []byte) (image.Image, error)
	Encode(img image.Image) (string, error)
	EncodeBytes(img image.Image) ([]byte, error)
}

type codec struct {
	quality int
}

func New() ICodec {
	return &codec{quality: DefaultQuality}
}

func NewWithQuality(quality int) ICodec {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &codec{quality: quality}
}

// Decode turns a base64 payload into an image. A "data:...;base64," prefix and
// embedded whitespace are tolerated.
func (c *codec) Decode(payload string) (image.Image, error) {
	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	return c.DecodeBytes(data)
}

func (c *codec) DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Encode always produces JPEG so callers get a single, predictable format.
func (c *codec) Encode(img image.Image) (string, error) {
	data, err := c.EncodeBytes(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (c *codec) EncodeBytes(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("cannot encode nil image")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeBase64(payload string) ([]byte, error) {
	s := strings.TrimSpace(payload)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx == -1 {
			return nil, fmt.Errorf("%w: malformed data URI", ErrDecode)
		}
		s = s[idx+1:]
	}
	s = strings.Join(strings.Fields(s), "")

	if s == "" {
		return nil, fmt.Errorf("%w: empty base64 payload", ErrDecode)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
		}
	}
	return data, nil
}

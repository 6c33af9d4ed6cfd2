package archive

import (
	"VisionPredictor/pkg/s3"
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendNone  = "none"

	ContentTypeJPEG = "image/jpeg"
)

var (
	ErrUnknownBackend = errors.New("unknown archive backend")
	ErrInvalidName    = errors.New("invalid archive name")
)

// IArchive stores processed images. Save returns where the image ended up:
// a filesystem path or an object URL.
type IArchive interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Backend() string
}

type localArchive struct {
	dir string
	log *logrus.Logger
}

func NewLocal(log *logrus.Logger, dir string) IArchive {
	return &localArchive{dir: dir, log: log}
}

func (a *localArchive) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating archive dir %s", a.dir)
	}

	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}

	a.log.WithField("path", path).Debug("Archived image")
	return path, nil
}

func (a *localArchive) Backend() string { return BackendLocal }

type s3Archive struct {
	client s3.ItfS3
	log    *logrus.Logger
}

func NewS3(log *logrus.Logger, client s3.ItfS3) IArchive {
	return &s3Archive{client: client, log: log}
}

func (a *s3Archive) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	location, err := a.client.UploadImage(ctx, name, data, ContentTypeJPEG)
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", name)
	}

	a.log.WithField("location", location).Debug("Archived image")
	return location, nil
}

func (a *s3Archive) Backend() string { return BackendS3 }

// New builds the archive named by backend. It returns nil for "none".
func New(log *logrus.Logger, backend string, dir string) (IArchive, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendLocal:
		return NewLocal(log, dir), nil
	case BackendS3:
		client, err := s3.New()
		if err != nil {
			return nil, errors.Wrap(err, "creating S3 client")
		}
		return NewS3(log, client), nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLocalArchiveSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "emotion", "processed")
	a := NewLocal(quietLogger(), dir)

	path, err := a.Save(context.Background(), "happy_1700000000000.jpg", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "happy_1700000000000.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
	assert.Equal(t, BackendLocal, a.Backend())
}

func TestLocalArchiveRejectsPaths(t *testing.T) {
	a := NewLocal(quietLogger(), t.TempDir())

	for _, name := range []string{"", "..", "../escape.jpg", "nested/file.jpg"} {
		_, err := a.Save(context.Background(), name, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestLocalArchiveCancelled(t *testing.T) {
	a := NewLocal(quietLogger(), t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Save(ctx, "a.jpg", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeS3 struct {
	keys        []string
	contentType string
	err         error
}

func (f *fakeS3) UploadImage(_ context.Context, key string, _ []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.contentType = contentType
	return "https://bucket.s3.amazonaws.com/" + key, nil
}

func (f *fakeS3) DeleteFile(context.Context, string) error { return nil }

func TestS3ArchiveSave(t *testing.T) {
	client := &fakeS3{}
	a := NewS3(quietLogger(), client)

	location, err := a.Save(context.Background(), "sad_1.jpg", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/sad_1.jpg", location)
	assert.Equal(t, ContentTypeJPEG, client.contentType)
	assert.Equal(t, BackendS3, a.Backend())

	client.err = errors.New("access denied")
	_, err = a.Save(context.Background(), "sad_2.jpg", []byte("x"))
	assert.ErrorContains(t, err, "access denied")
}

func TestNewArchive(t *testing.T) {
	a, err := New(quietLogger(), "none", "")
	assert.NoError(t, err)
	assert.Nil(t, a)

	a, err = New(quietLogger(), "", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, a.Backend())

	_, err = New(quietLogger(), "ftp", "")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

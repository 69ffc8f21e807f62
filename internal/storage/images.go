package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

const imagePrefix = "profiles/"

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// ImageExtension returns the lower-cased extension of filename and whether
// it is an accepted image type.
func ImageExtension(filename string) (string, bool) {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	_, ok := imageContentTypes[ext]
	return ext, ok
}

// Images stores profile images under random keys.
type Images struct {
	backend Backend
}

func NewImages(backend Backend) *Images {
	return &Images{backend: backend}
}

// Save uploads an image and returns its key. The extension must already
// have been checked with ImageExtension.
func (i *Images) Save(ctx context.Context, ext string, body io.Reader, size int64) (string, error) {
	ext = strings.ToLower(ext)
	key := imagePrefix + uuid.NewString() + ext
	if err := i.backend.Put(ctx, key, body, size, imageContentTypes[ext]); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns the image stored under key.
func (i *Images) Open(ctx context.Context, key string) (Object, error) {
	obj, err := i.backend.Open(ctx, key)
	if err != nil {
		return Object{}, err
	}
	if obj.ContentType == "" {
		obj.ContentType = imageContentTypes[strings.ToLower(path.Ext(key))]
	}
	return obj, nil
}

// Remove deletes the image under key. Missing objects are ignored.
func (i *Images) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := i.backend.Delete(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

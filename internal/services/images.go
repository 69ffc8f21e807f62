package services

import (
	"context"
	"io"

	"github.com/taskhub/apiserver/internal/storage"
)

// ImageStore keeps profile images.
type ImageStore interface {
	Save(ctx context.Context, ext string, body io.Reader, size int64) (string, error)
	Open(ctx context.Context, key string) (storage.Object, error)
	Remove(ctx context.Context, key string) error
}

// ImageUpload is an image file received from a client.
type ImageUpload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

func validateImage(upload *ImageUpload, images ImageStore) (string, error) {
	if upload == nil {
		return "", nil
	}
	ext, ok := storage.ImageExtension(upload.Filename)
	if !ok {
		return "", FieldError("image", "only .jpg, .jpeg, .png and .gif images are allowed")
	}
	if images == nil {
		return "", FieldError("image", "image uploads are not enabled")
	}
	return ext, nil
}

// saveImage validates and stores upload, returning the empty key when there
// is nothing to store.
func saveImage(ctx context.Context, images ImageStore, upload *ImageUpload) (string, error) {
	ext, err := validateImage(upload, images)
	if err != nil || upload == nil {
		return "", err
	}
	key, err := images.Save(ctx, ext, upload.Body, upload.Size)
	if err != nil {
		return "", Upstream("failed to store image", err)
	}
	return key, nil
}

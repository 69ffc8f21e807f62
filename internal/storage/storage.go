// Package storage keeps uploaded files (profile images) in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/taskhub/apiserver/config"
)

var (
	// ErrObjectNotFound is returned when a key has no object behind it.
	ErrObjectNotFound = errors.New("object not found")
	// ErrDisabled is returned by New when no backend is configured.
	ErrDisabled = errors.New("object storage disabled")
)

// Object is an opened object and its metadata.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Backend is implemented by each object store.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// New builds the backend selected by cfg.Backend and makes sure its bucket
// exists. It returns ErrDisabled for the "none" backend.
func New(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case config.StorageNone, "":
		return nil, ErrDisabled
	case config.StorageMinio:
		backend, err = NewMinioBackend(cfg.Minio)
	case config.StorageGCS:
		backend, err = NewGCSBackend(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return backend, nil
}

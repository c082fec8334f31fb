// Package blobstore defines the object store holding uploaded images.
package blobstore

import (
	"context"
	"time"
)

type Object struct {
	Path        string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

type Store interface {
	// Put stores data at path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte, contentType string) error
	// Get returns an error matching domain.ErrNotFound for missing objects.
	Get(ctx context.Context, path string) (*Object, error)
	// Delete returns an error matching domain.ErrNotFound for missing objects.
	Delete(ctx context.Context, path string) error
}

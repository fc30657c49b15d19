package core

import "context"

// ObjectStore archives raw uploads and processed text. It's abstract so the
// local filesystem default can be swapped for S3 without touching callers.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

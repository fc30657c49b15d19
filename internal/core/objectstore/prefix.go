package objectstore

import (
	"context"

	"github.com/davidemeka/ragserve/internal/core"
)

// PrefixStore namespaces every key under a fixed prefix so two logical
// stores can share one bucket.
type PrefixStore struct {
	inner  core.ObjectStore
	prefix string
}

func WithPrefix(inner core.ObjectStore, prefix string) *PrefixStore {
	return &PrefixStore{inner: inner, prefix: prefix}
}

func (s *PrefixStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return s.inner.Put(ctx, s.prefix+key, data, contentType)
}

func (s *PrefixStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *PrefixStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

var _ core.ObjectStore = (*PrefixStore)(nil)

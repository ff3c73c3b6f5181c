package auth

import (
	"context"
	"time"
)

// KeyValueStore is a byte-oriented store with expiry. The Redis client in
// pkg/clients/redis satisfies it. Get returns (nil, nil) on a miss.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// sharedKeyPrefix namespaces key set documents within the store.
const sharedKeyPrefix = "jwks:"

type kvDocumentStore struct {
	kv KeyValueStore
}

// NewSharedDocumentStore adapts kv into a DocumentStore for the key set
// cache.
func NewSharedDocumentStore(kv KeyValueStore) DocumentStore {
	return kvDocumentStore{kv: kv}
}

func (s kvDocumentStore) GetDocument(ctx context.Context, key string) ([]byte, error) {
	return s.kv.Get(ctx, sharedKeyPrefix+key)
}

func (s kvDocumentStore) PutDocument(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	return s.kv.Set(ctx, sharedKeyPrefix+key, doc, ttl)
}

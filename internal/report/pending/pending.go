// Package pending keeps expanded report bodies until their single-use token is
// redeemed.
package pending

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is how long an unredeemed report is kept.
const DefaultTTL = time.Hour

// ErrNotFound is returned when a token was never issued, already consumed or
// expired.
var ErrNotFound = errors.New("pending: report not found")

// Store holds report bodies keyed by token. Take must remove the entry
// atomically so a token can be redeemed at most once.
type Store interface {
	Put(ctx context.Context, token, body string) error
	Take(ctx context.Context, token string) (string, error)
}

// MemoryStore is an in-process Store with expiry.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStore returns a MemoryStore whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{cache: cache.New(ttl, ttl/2)}
}

func (s *MemoryStore) Put(_ context.Context, token, body string) error {
	s.cache.Set(token, body, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Take(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, found := s.cache.Get(token)
	if !found {
		return "", ErrNotFound
	}
	s.cache.Delete(token)
	return v.(string), nil
}

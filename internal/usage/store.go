package usage

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultTTL  = 10 * time.Minute
	DefaultSize = 256
)

// Store caches header-derived usage mappings keyed by subscription URL.
// The caller supplies the current time so expiry is deterministic
// under a fake clock.
type Store interface {
	Get(key string, now time.Time) (map[string]string, bool)
	Set(key string, value map[string]string, now time.Time)
	Remove(key string)
	Clear()
	TTL() time.Duration
}

type entry struct {
	value     map[string]string
	timestamp time.Time
}

// LRUStore is a size-bounded Store. Entries older than the TTL are
// treated as absent and dropped on access.
type LRUStore struct {
	mu    sync.Mutex
	cache *lru.Cache[uint64, entry]
	ttl   time.Duration
}

func NewLRUStore(size int, ttl time.Duration) (*LRUStore, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache, err := lru.New[uint64, entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage cache: %w", err)
	}
	return &LRUStore{cache: cache, ttl: ttl}, nil
}

func Key(url string) uint64 {
	return xxhash.Sum64String(url)
}

func (s *LRUStore) Get(key string, now time.Time) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := Key(key)
	e, ok := s.cache.Get(k)
	if !ok {
		return nil, false
	}
	if now.Sub(e.timestamp) >= s.ttl {
		s.cache.Remove(k)
		return nil, false
	}
	return copyMap(e.value), true
}

func (s *LRUStore) Set(key string, value map[string]string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(Key(key), entry{value: copyMap(value), timestamp: now})
}

func (s *LRUStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(Key(key))
}

func (s *LRUStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

func (s *LRUStore) TTL() time.Duration {
	return s.ttl
}

func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Ensure required interfaces are implemented
var _ Store = (*LRUStore)(nil)

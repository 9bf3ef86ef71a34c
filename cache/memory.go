package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

type entry struct {
	body    []byte
	expires time.Time
}

// MemoryCache is a least recently used cache bounded by the total size of
// its values.
type MemoryCache struct {
	mu       sync.Mutex
	lru      *lru.Cache
	size     int64
	maxBytes int64
	ttl      time.Duration
}

// NewMemoryCache keeps up to maxBytes, 0 meaning no bound, for ttl, 0
// meaning forever.
func NewMemoryCache(maxBytes int64, ttl time.Duration) *MemoryCache {
	mc := &MemoryCache{
		lru:      lru.New(0),
		maxBytes: maxBytes,
		ttl:      ttl,
	}
	mc.lru.OnEvicted = func(_ lru.Key, value interface{}) {
		mc.size -= int64(len(value.(*entry).body))
	}
	return mc
}

func (mc *MemoryCache) Get(key string) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	value, ok := mc.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	e := value.(*entry)
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		mc.lru.Remove(key)
		return nil, ErrMiss
	}
	return e.body, nil
}

func (mc *MemoryCache) Set(key string, body []byte) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.maxBytes > 0 && int64(len(body)) > mc.maxBytes {
		return nil
	}

	mc.lru.Remove(key)
	mc.lru.Add(key, &entry{body: body, expires: expiry(mc.ttl)})
	mc.size += int64(len(body))
	for mc.maxBytes > 0 && mc.size > mc.maxBytes {
		mc.lru.RemoveOldest()
	}
	return nil
}

func (mc *MemoryCache) Unset(key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.lru.Remove(key)
	return nil
}

// Size is the number of bytes held.
func (mc *MemoryCache) Size() int64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.size
}

func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.lru.Clear()
	return nil
}

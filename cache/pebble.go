package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// PebbleCache persists the values on disk, each one prefixed by its
// expiry in unix nanoseconds.
type PebbleCache struct {
	db  *pebble.DB
	ttl time.Duration
}

func NewPebbleCache(path string, ttl time.Duration) (*PebbleCache, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("cache: cannot open pebble at %s: %w", path, err)
	}
	return &PebbleCache{db: db, ttl: ttl}, nil
}

func (pc *PebbleCache) Get(key string) ([]byte, error) {
	value, closer, err := pc.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	if len(value) < 8 {
		return nil, ErrMiss
	}
	if expires := int64(binary.BigEndian.Uint64(value[:8])); expires > 0 && time.Now().UnixNano() > expires {
		_ = pc.db.Delete([]byte(key), pebble.NoSync)
		return nil, ErrMiss
	}

	body := make([]byte, len(value)-8)
	copy(body, value[8:])
	return body, nil
}

func (pc *PebbleCache) Set(key string, body []byte) error {
	var expires int64
	if e := expiry(pc.ttl); !e.IsZero() {
		expires = e.UnixNano()
	}
	value := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(value[:8], uint64(expires))
	copy(value[8:], body)
	return pc.db.Set([]byte(key), value, pebble.NoSync)
}

func (pc *PebbleCache) Unset(key string) error {
	return pc.db.Delete([]byte(key), pebble.Sync)
}

func (pc *PebbleCache) Close() error {
	return pc.db.Close()
}

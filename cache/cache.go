// Package cache stores the bytes read from slow image sources.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/greut/sipi/config"
)

// ErrMiss is returned by Get for an unknown or expired key.
var ErrMiss = errors.New("cache: miss")

// Cache is a byte store keyed by image identifier.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, body []byte) error
	Unset(key string) error
	Close() error
}

// NewCacheFromConfig builds the backend named by the configuration.
func NewCacheFromConfig(cfg config.StoreConfig) (Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryCache(cfg.SizeBytes, cfg.TTLDuration), nil
	case "pebble":
		return NewPebbleCache(cfg.Path, cfg.TTLDuration)
	case "badger":
		return NewBadgerCache(cfg.Path, cfg.TTLDuration)
	case "none", "":
		return NewNullCache(), nil
	}
	return nil, fmt.Errorf("cache: unknown type %q", cfg.Type)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

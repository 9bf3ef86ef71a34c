package source

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/greut/sipi/cache"
	"github.com/greut/sipi/internal/logger"
)

// Cached keeps what a slow source returns. The cached value is the
// modification time, 8 bytes of unix nanoseconds, followed by the body.
type Cached struct {
	source Source
	cache  cache.Cache
}

func NewCached(s Source, c cache.Cache) *Cached {
	return &Cached{source: s, cache: c}
}

func (cs *Cached) Read(ctx context.Context, identifier string) ([]byte, time.Time, error) {
	value, err := cs.cache.Get(identifier)
	if err == nil && len(value) >= 8 {
		debug("from cache %v", identifier)
		modTime := time.Unix(0, int64(binary.BigEndian.Uint64(value[:8])))
		return value[8:], modTime, nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		logger.Warn("cache read of %s failed: %s", identifier, err)
	}

	body, modTime, err := cs.source.Read(ctx, identifier)
	if err != nil {
		return nil, time.Time{}, err
	}

	value = make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(value[:8], uint64(modTime.UnixNano()))
	copy(value[8:], body)
	if err := cs.cache.Set(identifier, value); err != nil {
		logger.Warn("cache write of %s failed: %s", identifier, err)
	}
	return body, modTime, nil
}

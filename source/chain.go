package source

import (
	"context"
	"errors"
	"time"
)

// Chain tries its sources in order until one knows the identifier.
type Chain []Source

func (c Chain) Read(ctx context.Context, identifier string) ([]byte, time.Time, error) {
	for _, s := range c {
		body, modTime, err := s.Read(ctx, identifier)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return body, modTime, err
	}
	return nil, time.Time{}, ErrNotFound
}

// Package source reads the original images by identifier.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	d "github.com/tj/go-debug"

	"github.com/greut/sipi/cache"
	"github.com/greut/sipi/config"
	"github.com/greut/sipi/shard"
)

var debug = d.Debug("source")

// ErrNotFound is returned when a source does not know the identifier.
var ErrNotFound = errors.New("source: image not found")

// Source returns the bytes of an image and its modification time.
type Source interface {
	Read(ctx context.Context, identifier string) ([]byte, time.Time, error)
}

// NewSourceFromConfig chains the configured sources, the remote ones behind
// the given cache.
func NewSourceFromConfig(ctx context.Context, cfg *config.Config, engine *shard.Engine, c cache.Cache) (Source, error) {
	var chain Chain
	for _, name := range cfg.Images.Sources {
		var s Source
		var err error
		switch name {
		case "disk":
			if engine == nil {
				return nil, fmt.Errorf("source: the disk source needs a shard tree")
			}
			s = NewDiskSource(engine)
		case "http":
			s = NewHTTPSource(cfg.Images.TimeoutDuration)
		case "s3":
			s, err = NewS3SourceFromOptions(ctx, cfg.Images.S3)
		case "gcs":
			s, err = NewGCSSourceFromOptions(ctx, cfg.Images.GCS)
		default:
			err = fmt.Errorf("source: unknown type %q", name)
		}
		if err != nil {
			return nil, err
		}
		if name != "disk" && c != nil {
			s = NewCached(s, c)
		}
		chain = append(chain, s)
	}

	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

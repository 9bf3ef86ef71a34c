package iiif

import (
	"context"
	"net/http"

	"github.com/golang/groupcache"

	"github.com/greut/sipi/config"
	"github.com/greut/sipi/metrics"
	"github.com/greut/sipi/shard"
)

// ContextKey is the cache key to use.
type ContextKey string

// WithGroupCaches sets the various caches.
func WithGroupCaches(h http.Handler, groups map[string]*groupcache.Group) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for k, v := range groups {
			ctx = context.WithValue(ctx, ContextKey(k), v)
		}
		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}

// WithConfig sets the IIIF server configuration.
func WithConfig(h http.Handler, config *config.Config) http.Handler {
	return withValue(h, "config", config)
}

// WithRenderer sets what opens and renders the images.
func WithRenderer(h http.Handler, renderer *Renderer) http.Handler {
	return withValue(h, "renderer", renderer)
}

// WithEngine sets the shard tree served by the admin endpoints.
func WithEngine(h http.Handler, engine *shard.Engine) http.Handler {
	return withValue(h, "engine", engine)
}

func WithMetrics(h http.Handler, m *metrics.Metrics) http.Handler {
	return withValue(h, "metrics", m)
}

func withValue(h http.Handler, key string, value any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKey(key), value)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

func configFrom(ctx context.Context) *config.Config {
	c, _ := ctx.Value(ContextKey("config")).(*config.Config)
	if c == nil {
		return config.Default()
	}
	return c
}

func rendererFrom(ctx context.Context) *Renderer {
	r, _ := ctx.Value(ContextKey("renderer")).(*Renderer)
	return r
}

func engineFrom(ctx context.Context) *shard.Engine {
	e, _ := ctx.Value(ContextKey("engine")).(*shard.Engine)
	return e
}

func metricsFrom(ctx context.Context) *metrics.Metrics {
	m, _ := ctx.Value(ContextKey("metrics")).(*metrics.Metrics)
	return m
}

func thumbnailsFrom(ctx context.Context) *groupcache.Group {
	g, _ := ctx.Value(ContextKey("thumbnails")).(*groupcache.Group)
	return g
}

// Package iiif serves the IIIF 2.1 Image API over HTTP.
package iiif

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang/groupcache"
	"github.com/gorilla/mux"
	d "github.com/tj/go-debug"

	"github.com/greut/sipi/config"
	"github.com/greut/sipi/image"
	"github.com/greut/sipi/internal/logger"
	"github.com/greut/sipi/metrics"
	"github.com/greut/sipi/shard"
	"github.com/greut/sipi/source"
)

var debug = d.Debug("iiif")

// Renderer opens source images and renders plans out of them.
type Renderer struct {
	Source  source.Source
	Decoder image.Decoder
	Parser  *image.Parser
	Metrics *metrics.Metrics
}

func NewRenderer(src source.Source, decoder image.Decoder, parser *image.Parser, m *metrics.Metrics) *Renderer {
	if parser == nil {
		parser = image.NewParser(false, nil)
	}
	return &Renderer{Source: src, Decoder: decoder, Parser: parser, Metrics: m}
}

// Open reads and decodes identifier.
func (r *Renderer) Open(ctx context.Context, identifier string) (image.Image, time.Time, error) {
	buf, modTime, err := r.Source.Read(ctx, identifier)
	if err != nil {
		return nil, time.Time{}, err
	}

	img, err := r.Decoder.Decode(buf)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("cannot open %#v: %w", identifier, err)
	}
	return img, modTime, nil
}

// Render transforms img following plan.
func (r *Renderer) Render(img image.Image, plan *image.Plan, modTime time.Time) (*Rendered, error) {
	buf, err := img.Transform(plan)
	if err != nil {
		return nil, err
	}
	r.Metrics.ObserveResize(plan.Size.ReduceOnly)
	return &Rendered{Buffer: buf, MIME: plan.Format.MIME, ModTime: modTime}, nil
}

// RenderKey renders a canonical "identifier/region/size/rotation/quality.format"
// path from scratch, which is what a peer asks for.
func (r *Renderer) RenderKey(ctx context.Context, key string) (*Rendered, error) {
	identifier, params, err := splitKey(key)
	if err != nil {
		return nil, err
	}

	t, err := r.Parser.Parse(params[0], params[1], params[2], params[3], params[4])
	if err != nil {
		return nil, err
	}

	img, modTime, err := r.Open(ctx, identifier)
	if err != nil {
		return nil, err
	}

	plan, err := t.Plan(img.Width(), img.Height())
	if err != nil {
		return nil, err
	}
	return r.Render(img, plan, modTime)
}

// splitKey cuts a canonical path from the right, the identifier being
// allowed to contain slashes.
func splitKey(key string) (string, [5]string, error) {
	var params [5]string

	parts := strings.Split(key, "/")
	if len(parts) < 5 {
		return "", params, HTTPError{http.StatusBadRequest, fmt.Sprintf("invalid key %#v", key)}
	}

	n := len(parts)
	last := parts[n-1]
	dot := strings.LastIndex(last, ".")
	if dot < 0 {
		return "", params, HTTPError{http.StatusBadRequest, fmt.Sprintf("invalid key %#v", key)}
	}

	params[0] = parts[n-4]
	params[1] = parts[n-3]
	params[2] = parts[n-2]
	params[3] = last[:dot]
	params[4] = last[dot+1:]
	return strings.Join(parts[:n-4], "/"), params, nil
}

// MakeRouter construct the basic router (no middlewares)
func MakeRouter() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", IndexHandler)
	router.HandleFunc("/metrics", MetricsHandler)
	router.HandleFunc("/admin/shard", requireAdmin(ShardStatusHandler)).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/admin/shard", requireAdmin(ShardMigrateHandler)).Methods(http.MethodPost)
	router.HandleFunc("/admin/shard/resume", requireAdmin(ShardResumeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/admin/shard/rollback", requireAdmin(ShardRollbackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/{identifier:.*}/info.json", instrumented("info", InfoHandler))
	router.HandleFunc("/{identifier:.*}/{region}/{size}/{rotation}/{quality}.{format}", instrumented("image", ImageHandler))
	router.HandleFunc("/{identifier:.*}/{viewer}.html", ViewerHandler)
	router.HandleFunc("/{identifier:.*}", RedirectHandler)

	return router
}

func instrumented(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricsFrom(r.Context()).Instrument(name, h)(w, r)
	}
}

// SetGroupCache sets the thumbnails cache, shared with the peers when
// config lists some. groupcache groups are process wide, the first
// renderer set is kept for the lifetime of the process.
func SetGroupCache(router http.Handler, config *config.Config, renderer *Renderer) http.Handler {
	thumbnails := groupcache.GetGroup("thumbnails")
	if thumbnails == nil {
		thumbnails = groupcache.NewGroup("thumbnails", config.Cache.ThumbnailsSize, groupcache.GetterFunc(
			func(ctx context.Context, key string, dest groupcache.Sink) error {
				var rendered *Rendered
				var err error
				if p, ok := ctx.Value(ContextKey("pending")).(*pending); ok && p.key == key {
					p.rendered = true
					rendered, err = renderer.Render(p.image, p.plan, p.modTime)
				} else {
					rendered, err = renderer.RenderKey(ctx, key)
				}
				if err != nil {
					return err
				}

				renderer.Metrics.ObserveThumbnail("miss")
				debug("Caching %s (%v)", key, rendered.ModTime)

				return dest.SetProto(newCacheableImage(rendered.Buffer, rendered.MIME, rendered.ModTime))
			},
		))
	}

	h := WithGroupCaches(router, map[string]*groupcache.Group{
		"thumbnails": thumbnails,
	})

	if len(config.Cache.Peers) == 0 {
		return h
	}

	pool := groupcache.NewHTTPPoolOpts(config.Cache.Self, nil)
	pool.Set(config.Cache.Peers...)
	logger.Info("iiif: sharing thumbnails with %d peers as %s", len(config.Cache.Peers), config.Cache.Self)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/_groupcache/") {
			pool.ServeHTTP(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// pending hands an already decoded image to the thumbnails getter so a
// local miss does not read the source twice.
type pending struct {
	key     string
	image   image.Image
	plan    *image.Plan
	modTime time.Time
	// rendered is set by the getter, a lookup that leaves it unset is a hit.
	rendered bool
}

// NewServer assembles the router and its middlewares. The thumbnails
// cache is left out when its size is zero.
func NewServer(cfg *config.Config, renderer *Renderer, engine *shard.Engine, m *metrics.Metrics) http.Handler {
	h := MakeRouter()
	if cfg.Cache.ThumbnailsSize > 0 {
		h = SetGroupCache(h, cfg, renderer)
	}
	h = WithMetrics(h, m)
	h = WithEngine(h, engine)
	h = WithRenderer(h, renderer)
	return WithConfig(h, cfg)
}

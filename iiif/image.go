package iiif

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/golang/groupcache"
	"github.com/gorilla/mux"

	"github.com/greut/sipi/config"
	"github.com/greut/sipi/image"
	"github.com/greut/sipi/profile"
)

// checkLimits refuses an explicit size larger than the configured maximums.
func checkLimits(cfg *config.Config, size *image.Size) error {
	resolved, err := size.Resolved()
	if err != nil {
		return err
	}

	if cfg.MaxWidth > 0 || cfg.MaxHeight > 0 {
		maxWidth, maxHeight := cfg.MaxWidth, cfg.MaxHeight
		if maxWidth <= 0 {
			maxWidth = math.MaxInt32
		}
		if maxHeight <= 0 {
			maxHeight = math.MaxInt32
		}

		limit := image.NewPixelsSize(maxWidth, maxHeight)
		if _, err := limit.Resolve(maxWidth, maxHeight); err != nil {
			return err
		}

		greater, err := size.Greater(limit)
		if err != nil {
			return err
		}
		if greater {
			message := fmt.Sprintf(maxSizeError, resolved.Width, resolved.Height, cfg.MaxWidth, cfg.MaxHeight, cfg.MaxArea)
			return HTTPError{http.StatusBadRequest, message}
		}
	}

	if cfg.MaxArea > 0 && resolved.Width*resolved.Height > cfg.MaxArea {
		message := fmt.Sprintf(maxSizeError, resolved.Width, resolved.Height, cfg.MaxWidth, cfg.MaxHeight, cfg.MaxArea)
		return HTTPError{http.StatusBadRequest, message}
	}

	return nil
}

// withinLimits tells whether a w by h output fits the configured maximums.
func withinLimits(cfg *config.Config, w, h int) bool {
	return (cfg.MaxWidth <= 0 || w <= cfg.MaxWidth) &&
		(cfg.MaxHeight <= 0 || h <= cfg.MaxHeight) &&
		(cfg.MaxArea <= 0 || w*h <= cfg.MaxArea)
}

// limitFull scales a full or max request down to the configured maximums,
// the smallest of the width, height and area ratios winning. The size
// becomes a "w," request so the canonical path names the scaled output.
func limitFull(cfg *config.Config, t *image.Transformation, plan *image.Plan) (*image.Plan, error) {
	if t.Size.Type != image.FullSize || withinLimits(cfg, plan.Size.Width, plan.Size.Height) {
		return plan, nil
	}

	width, height := plan.Crop.W, plan.Crop.H
	ratio := 1.
	if cfg.MaxWidth > 0 && width > cfg.MaxWidth {
		ratio = math.Min(ratio, float64(cfg.MaxWidth)/float64(width))
	}
	if cfg.MaxHeight > 0 && height > cfg.MaxHeight {
		ratio = math.Min(ratio, float64(cfg.MaxHeight)/float64(height))
	}
	area := width * height
	if cfg.MaxArea > 0 && area > cfg.MaxArea {
		ratio = math.Min(ratio, math.Sqrt(float64(cfg.MaxArea)/float64(area)))
	}

	// the derived height is rounded up, which may overshoot by a pixel
	for w := max(1, int(float64(width)*ratio)); w > 0; w-- {
		t.Size = image.NewPixelsSize(w, 0)
		scaled, err := t.Plan(plan.SourceWidth, plan.SourceHeight)
		if err != nil {
			return nil, err
		}
		plan = scaled
		if withinLimits(cfg, plan.Size.Width, plan.Size.Height) {
			break
		}
	}
	return plan, nil
}

// render goes through the thumbnails group when there is one.
func render(ctx context.Context, renderer *Renderer, key string, img image.Image, plan *image.Plan, t *pending) (*Rendered, error) {
	thumbnails := thumbnailsFrom(ctx)
	if thumbnails == nil {
		return renderer.Render(img, plan, t.modTime)
	}

	ctx = context.WithValue(ctx, ContextKey("pending"), t)

	var ci CacheableImage
	if err := thumbnails.Get(ctx, key, groupcache.ProtoSink(&ci)); err != nil {
		return nil, err
	}
	if !t.rendered {
		renderer.Metrics.ObserveThumbnail("hit")
	}

	return &Rendered{Buffer: ci.GetBuffer(), MIME: ci.GetMIME(), ModTime: ci.Time()}, nil
}

// ImageHandler responds to the IIIF 2.1 Image API.
func ImageHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	region := vars["region"]
	size := vars["size"]
	rotation := vars["rotation"]
	quality := vars["quality"]
	format := vars["format"]

	ctx := r.Context()
	cfg := configFrom(ctx)
	renderer := rendererFrom(ctx)

	identifier, err := image.ScrubIdentifier(vars["identifier"])
	if err != nil {
		debug("Filename is frob %#v", vars["identifier"])
		http.NotFound(w, r)
		return
	}

	t, err := renderer.Parser.Parse(region, size, rotation, quality, format)
	if err != nil {
		writeError(w, err)
		return
	}

	img, modTime, err := renderer.Open(ctx, identifier)
	if err != nil {
		writeError(w, err)
		return
	}

	plan, err := t.Plan(img.Width(), img.Height())
	if err != nil {
		writeError(w, err)
		return
	}

	plan, err = limitFull(cfg, t, plan)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := checkLimits(cfg, t.Size); err != nil {
		writeError(w, err)
		return
	}

	key := plan.Path(identifier)
	debug("%s ~> %s (%dx%d, reduce %d)", r.URL.Path, key, plan.Size.Width, plan.Size.Height, plan.Size.Reduce)

	rendered, err := render(ctx, renderer, key, img, plan, &pending{
		key:     key,
		image:   img,
		plan:    plan,
		modTime: modTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("%v-%v-%v-%v-%v.%v", identifier, region, size, rotation, quality, format)
	filename = strings.Replace(
		strings.Replace(
			strings.Replace(filename, "/", "_", -1),
			":", "_", -1),
		",", "", -1)

	disposition := "inline"
	_, present := r.URL.Query()["dl"]
	if present {
		disposition = "attachment"
	}

	header := w.Header()
	header.Set("Content-Disposition", fmt.Sprintf("%s; filename=%s", disposition, filename))
	header.Set("Content-Type", rendered.MIME)
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Link", fmt.Sprintf(`<%s/%s>;rel="canonical", <%s>;rel="profile"`, baseURL(r), key, profile.Level2))
	header.Set("ETag", getETag(key+rendered.ModTime.String()))
	header.Set("Cache-Control", fmt.Sprintf("max-age=%v, public", cfg.Cache.HTTP))

	http.ServeContent(w, r, filename, rendered.ModTime, bytes.NewReader(rendered.Buffer))
}

// baseURL is the scheme and host the client used, proxies included.
func baseURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if r.Header.Get("X-Forwarded-Proto") != "" {
		scheme = r.Header.Get("X-Forwarded-Proto")
	}

	host := r.Host
	if r.Header.Get("X-Forwarded-Host") != "" {
		host = r.Header.Get("X-Forwarded-Host")
	}

	return fmt.Sprintf("%s://%s", scheme, host)
}

func getETag(str string) string {
	return fmt.Sprintf("\"%x\"", sha1.Sum([]byte(str)))
}

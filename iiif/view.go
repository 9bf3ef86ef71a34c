package iiif

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/greut/sipi/image"
	"github.com/greut/sipi/profile"
)

type titledURL struct {
	URL   string
	Title string
}

// index is used when no index.html template is configured.
var index = template.Must(template.New("index.html").Parse(`<!doctype html>
<title>sipi</title>
<h1>IIIF Image API 2.1</h1>
<p>Request <code>/{identifier}/info.json</code> or
<code>/{identifier}/{region}/{size}/{rotation}/{quality}.{format}</code>.</p>
<ul>
{{- range .Viewers}}
<li><a href="{{.URL}}">{{.Title}}</a></li>
{{- end}}
</ul>
`))

// IndexHandler shows the homepage.
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	p := struct {
		Viewers []titledURL
	}{
		Viewers: []titledURL{
			{"openseadragon.html", "OpenSeadragon"},
			{"leaflet.html", "Leaflet-IIIF"},
			{"iiifviewer.html", "IIIF Viewer"},
			{"info.json", "JSON-LD profile"},
		},
	}

	config := configFrom(r.Context())

	t := index
	if config.Templates != "" {
		tpl := filepath.Join(config.Templates, "index.html")
		if _, err := os.Stat(tpl); err == nil {
			parsed, err := template.ParseFiles(tpl)
			if err != nil {
				writeError(w, err)
				return
			}
			t = parsed
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, p); err != nil {
		debug("index: %s", err)
	}
}

// RedirectHandler responds to the image technical properties.
func RedirectHandler(w http.ResponseWriter, r *http.Request) {
	identifier, err := image.ScrubIdentifier(mux.Vars(r)["identifier"])
	if err != nil || identifier == "" {
		debug("Filename is frob %#v", mux.Vars(r)["identifier"])
		http.NotFound(w, r)
		return
	}

	http.Redirect(w, r, baseURL(r)+"/"+identifier+"/info.json", http.StatusSeeOther)
}

// InfoHandler responds to the image technical properties.
func InfoHandler(w http.ResponseWriter, r *http.Request) {
	identifier, err := image.ScrubIdentifier(mux.Vars(r)["identifier"])
	if err != nil {
		debug("Filename is frob %#v", mux.Vars(r)["identifier"])
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	config := configFrom(ctx)
	renderer := rendererFrom(ctx)

	img, modTime, err := renderer.Open(ctx, identifier)
	if err != nil {
		writeError(w, err)
		return
	}

	limits := profile.Limits{
		MaxWidth:  config.MaxWidth,
		MaxHeight: config.MaxHeight,
		MaxArea:   config.MaxArea,
	}
	info := profile.New(baseURL(r)+"/"+identifier, img.Width(), img.Height(), renderer.Decoder.Features(), limits, config.TileSize)

	buffer, err := info.JSON()
	if err != nil {
		http.Error(w, "Cannot create profile", http.StatusInternalServerError)
		return
	}

	header := w.Header()

	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/ld+json") {
		header.Set("Content-Type", "application/ld+json")
	} else {
		header.Set("Content-Type", "application/json")
	}
	header.Set("Link", `<`+profile.Level2+`>;rel="profile"`)
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	header.Set("ETag", getETag(r.URL.String()+modTime.String()))
	header.Set("Cache-Control", fmt.Sprintf("max-age=%v, public", config.Cache.HTTP))
	http.ServeContent(w, r, "info.json", modTime, bytes.NewReader(buffer))
}

// ViewerHandler responds with the existing templates.
func ViewerHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	viewer := filepath.Base(vars["viewer"]) + ".html"

	identifier, err := image.ScrubIdentifier(vars["identifier"])
	if err != nil {
		debug("Filename is frob %#v", vars["identifier"])
		http.NotFound(w, r)
		return
	}

	config := configFrom(r.Context())
	if config.Templates == "" {
		http.NotFound(w, r)
		return
	}

	tpl := filepath.Join(config.Templates, "viewer", viewer)
	t, err := template.ParseFiles(tpl)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	p := &struct{ Image string }{Image: identifier}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, p); err != nil {
		debug("viewer %s: %s", viewer, err)
	}
}

// MetricsHandler exposes the Prometheus metrics, 404 when disabled.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	metricsFrom(r.Context()).Handler().ServeHTTP(w, r)
}

package iiif

import (
	"encoding/base64"
	"encoding/json"
	goimage "image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/greut/sipi/config"
	"github.com/greut/sipi/image"
	"github.com/greut/sipi/metrics"
	"github.com/greut/sipi/profile"
	"github.com/greut/sipi/shard"
	"github.com/greut/sipi/source"
)

func TestGetHtml(t *testing.T) {
	ts := newServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if status := resp.StatusCode; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	if contentType := resp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/html") {
		t.Errorf("index should return HTML by default: got %v want text/html", contentType)
	}
}

func TestViewer(t *testing.T) {
	templates := t.TempDir()
	if err := os.MkdirAll(filepath.Join(templates, "viewer"), 0o755); err != nil {
		t.Fatal(err)
	}
	viewer := `<div data-image="{{.Image}}"></div>`
	if err := os.WriteFile(filepath.Join(templates, "viewer", "openseadragon.html"), []byte(viewer), 0o644); err != nil {
		t.Fatal(err)
	}

	ts := newServerWithConfig(t, func(c *config.Config) {
		c.Templates = templates
	})
	defer ts.Close()

	var tests = []struct {
		url    string
		status int
	}{
		{"/lena.png/openseadragon.html", http.StatusOK},
		{"/lena.png/leaflet.html", http.StatusNotFound},
	}

	for _, test := range tests {
		resp, err := http.Get(ts.URL + test.url)
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()

		if status := resp.StatusCode; status != test.status {
			t.Errorf("%s: got %v want %v", test.url, status, test.status)
		}
	}
}

func TestRedirectToInfo(t *testing.T) {
	ts := newServer(t)
	defer ts.Close()

	req, err := http.NewRequest("GET", ts.URL+"/lena.png", nil)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Add("X-Forwarded-Host", "example.org")
	req.Header.Add("X-Forwarded-Proto", "https")

	client := &http.Client{
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if status := resp.StatusCode; status != http.StatusSeeOther {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusSeeOther)
	}

	if location := resp.Header.Get("Location"); location != "https://example.org/lena.png/info.json" {
		t.Errorf("Location returned bad value: got %#v", location)
	}
}

func TestEtag(t *testing.T) {
	ts := newServer(t)
	defer ts.Close()

	for _, u := range []string{"/lena.png/full/max/0/default.png", "/lena.png/info.json"} {
		resp, err := http.Get(ts.URL + u)
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()

		if etag := resp.Header.Get("ETag"); etag == "" {
			t.Errorf("%s should have a ETag header, got nothing.", u)
		}
	}
}

func TestInfoAsJson(t *testing.T) {
	ts := newServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/lena.png/info.json")
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if status := resp.StatusCode; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
		t.Errorf("handle should return JSON by default: got %v want application/json", contentType)
	}
}

func TestInfo(t *testing.T) {
	ts := newServer(t)
	defer ts.Close()

	req, err := http.NewRequest("GET", ts.URL+"/lena.png/info.json", nil)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Add("X-Forwarded-Host", "example.org")
	req.Header.Add("X-Forwarded-Proto", "https")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var m profile.Image
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		log.Fatal(err)
	}

	if m.ID != "https://example.org/lena.png" {
		t.Errorf("Image ID expected to contains correct host name, got: %v", m.ID)
	}
	if m.Width != 400 || m.Height != 300 {
		t.Errorf("got %vx%v want 400x300", m.Width, m.Height)
	}
	if len(m.Sizes) == 0 || len(m.Tiles) == 0 {
		t.Errorf("sizes and tiles expected, got %#v and %#v", m.Sizes, m.Tiles)
	}

	var p profile.ImageProfile
	_ = mapstructure.Decode(m.Profile[1], &p)

	if p.MaxArea != 0 {
		t.Errorf("Profile MaxArea expected to be missing, got: %v.", p.MaxArea)
	}
}

func TestInfoMaxSize(t *testing.T) {
	ts := newServerWithMaxSize(t, 400, 200, 50000)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/lena.png/info.json")
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var m profile.Image
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		log.Fatal(err)
	}

	var p profile.ImageProfile
	_ = mapstructure.Decode(m.Profile[1], &p)

	if p.MaxWidth != 400 {
		t.Errorf("Profile MaxWidth expected to be 400, got: %v.", p.MaxWidth)
	}
	if p.MaxHeight != 200 {
		t.Errorf("Profile MaxHeight expected to be 200, got: %v.", p.MaxHeight)
	}
	if p.MaxArea != 50000 {
		t.Errorf("Profile MaxArea expected to be 50000, got: %v.", p.MaxArea)
	}
}

func TestInfoAsJsonLd(t *testing.T) {
	ts := newServer(t)
	defer ts.Close()

	req, err := http.NewRequest("GET", ts.URL+"/lena.png/info.json", nil)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Add("Accept", "application/ld+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if status := resp.StatusCode; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "application/ld+json" {
		t.Errorf("handle should return JSON-LD: got %v want application/ld+json", contentType)
	}
}

func TestOnlineImageBase64(t *testing.T) {
	remote := newRemote(t)
	defer remote.Close()

	ts := newServer(t)
	defer ts.Close()

	imageURL := remote.URL + "/yoan.png"
	key := base64.URLEncoding.EncodeToString([]byte(imageURL))

	resp, err := http.Get(ts.URL + "/" + key + "/info.json")
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if status := resp.StatusCode; status != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var m profile.Image
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		log.Fatal(err)
	}

	if m.Width != 300 || m.Height != 300 {
		t.Errorf("%v image expected to be 300x300: got %v x %v", imageURL, m.Width, m.Height)
	}
}

func TestOnlineImageUrl(t *testing.T) {
	remote := newRemote(t)
	defer remote.Close()

	ts := newServer(t)
	defer ts.Close()

	var tests = []struct {
		url    string
		status int
		width  int
		height int
	}{
		{remote.URL + "/yoan.png", http.StatusOK, 300, 300},
		{remote.URL + "/missing.png", http.StatusNotFound, 0, 0},
		{remote.URL + "/", http.StatusNotImplemented, 0, 0},
	}

	for _, test := range tests {
		resp, err := http.Get(ts.URL + "/" + url.QueryEscape(test.url) + "/info.json")
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()

		if status := resp.StatusCode; status != test.status {
			t.Errorf("%s: got %v want %v", test.url, status, test.status)
			continue
		}
		if test.status != http.StatusOK {
			continue
		}

		var m profile.Image
		if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
			log.Fatal(err)
		}

		if m.Width != test.width || m.Height != test.height {
			t.Errorf("%v image expected to be %dx%d: got %dx%d", test.url, test.width, test.height, m.Width, m.Height)
		}
	}
}

func newServer(t *testing.T) *httptest.Server {
	return newServerWithMaxSize(t, 0, 0, 0)
}

func newServerWithMaxSize(t *testing.T, width, height, area int) *httptest.Server {
	return newServerWithConfig(t, func(c *config.Config) {
		c.MaxWidth = width
		c.MaxHeight = height
		c.MaxArea = area
	})
}

// newServerWithConfig serves a shard tree holding lena.png (400x300) and
// test.txt, plus any remote image over HTTP. The thumbnails cache is off
// unless fn sets its size.
func newServerWithConfig(t *testing.T, fn func(*config.Config)) *httptest.Server {
	ts, _ := newServerWithEngine(t, fn)
	return ts
}

func newServerWithEngine(t *testing.T, fn func(*config.Config)) (*httptest.Server, *shard.Engine) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "lena.png"), 400, 300)
	if err := os.WriteFile(filepath.Join(root, "test.txt"), []byte("hello, world\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := config.Default()
	c.Templates = ""
	c.Images.Root = root
	if fn != nil {
		fn(c)
	}

	engine, err := shard.New(root)
	if err != nil {
		t.Fatal(err)
	}

	src := source.Chain{
		source.NewDiskSource(engine),
		source.NewHTTPSource(5 * time.Second),
	}

	m := metrics.New(c.Metrics.Enabled)
	renderer := NewRenderer(src, image.NewImagingDecoder(), image.NewParser(c.Strict, nil), m)

	return httptest.NewServer(NewServer(c, renderer, engine, m)), engine
}

// newRemote serves yoan.png (300x300) and a non image on /.
func newRemote(t *testing.T) *httptest.Server {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "yoan.png"), 300, 300)

	mux := http.NewServeMux()
	mux.HandleFunc("/yoan.png", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(dir, "yoan.png"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<!doctype html><p>not an image</p>"))
	})
	return httptest.NewServer(mux)
}

func writePNG(t *testing.T, path string, w, h int) {
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), uint8(x + y), 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

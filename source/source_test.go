package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greut/sipi/cache"
	"github.com/greut/sipi/config"
	"github.com/greut/sipi/shard"
)

func newTree(t *testing.T, levels int, files map[string]string) *shard.Engine {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
	}
	require.NoError(t, shard.MigrateToLevels(context.Background(), root, levels))
	e, err := shard.New(root)
	require.NoError(t, err)
	return e
}

func TestDiskSource(t *testing.T) {
	e := newTree(t, 2, map[string]string{"lena.jpg": "lena"})
	ds := NewDiskSource(e)

	body, modTime, err := ds.Read(context.Background(), "lena.jpg")
	require.NoError(t, err)
	assert.Equal(t, "lena", string(body))
	assert.False(t, modTime.IsZero())

	for _, id := range []string{"missing.jpg", "A/lena.jpg", "", ".sipi-migration.db", "http://example.com/x.png"} {
		_, _, err := ds.Read(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}

func TestURL(t *testing.T) {
	var tests = []struct {
		identifier string
		url        string
		ok         bool
	}{
		{"http://example.com/a.png", "http://example.com/a.png", true},
		{"http:/example.com/a.png", "http://example.com/a.png", true},
		{"https:/example.com/a.png", "https://example.com/a.png", true},
		{base64.StdEncoding.EncodeToString([]byte("https://example.com/b.png")), "https://example.com/b.png", true},
		{base64.URLEncoding.EncodeToString([]byte("http://example.com/?q=1>")), "http://example.com/?q=1>", true},
		{"lena.jpg", "", false},
		{"lena", "", false},
		{"ftp:/example.com/a.png", "", false},
	}

	for _, test := range tests {
		url, ok := URL(test.identifier)
		assert.Equal(t, test.ok, ok, test.identifier)
		assert.Equal(t, test.url, url, test.identifier)
	}
}

func TestHTTPSource(t *testing.T) {
	lastModified := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/yoan.png":
			w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
			w.Write([]byte("png"))
		case "/broken.png":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	hs := NewHTTPSource(time.Second)
	ctx := context.Background()

	body, modTime, err := hs.Read(ctx, ts.URL+"/yoan.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(body))
	assert.True(t, lastModified.Equal(modTime))

	collapsed := strings.Replace(ts.URL, "://", ":/", 1) + "/yoan.png"
	_, _, err = hs.Read(ctx, collapsed)
	assert.NoError(t, err)

	_, _, err = hs.Read(ctx, ts.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = hs.Read(ctx, ts.URL+"/broken.png")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, _, err = hs.Read(ctx, "lena.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	modTime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(strings.NewReader(body)),
		LastModified: &modTime,
	}, nil
}

func TestS3Source(t *testing.T) {
	ss := NewS3Source(&fakeS3{objects: map[string]string{"iiif/images/lena.jpg": "lena"}}, "iiif", "images/")
	ctx := context.Background()

	body, modTime, err := ss.Read(ctx, "lena.jpg")
	require.NoError(t, err)
	assert.Equal(t, "lena", string(body))
	assert.Equal(t, 2021, modTime.Year())

	_, _, err = ss.Read(ctx, "missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3SourceOptions(t *testing.T) {
	_, err := NewS3SourceFromOptions(context.Background(), map[string]any{"region": "eu-central-1"})
	assert.Error(t, err)
	_, err = NewS3SourceFromOptions(context.Background(), map[string]any{"bucket": "iiif"})
	assert.Error(t, err)
}

type fakeOpener map[string]string

func (f fakeOpener) Open(_ context.Context, bucket, name string) (io.ReadCloser, time.Time, error) {
	body, ok := f[bucket+"/"+name]
	if !ok {
		return nil, time.Time{}, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader([]byte(body))), time.Unix(42, 0), nil
}

func TestGCSSource(t *testing.T) {
	gs := &GCSSource{opener: fakeOpener{"iiif/lena.jpg": "lena"}, bucket: "iiif"}
	ctx := context.Background()

	body, modTime, err := gs.Read(ctx, "lena.jpg")
	require.NoError(t, err)
	assert.Equal(t, "lena", string(body))
	assert.Equal(t, int64(42), modTime.Unix())

	_, _, err = gs.Read(ctx, "missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewGCSSourceFromOptions(ctx, map[string]any{})
	assert.Error(t, err)
}

type countingSource struct {
	reads int
	body  string
}

func (c *countingSource) Read(_ context.Context, identifier string) ([]byte, time.Time, error) {
	c.reads++
	if identifier != "known" {
		return nil, time.Time{}, ErrNotFound
	}
	return []byte(c.body), time.Unix(1000, 0), nil
}

func TestCached(t *testing.T) {
	inner := &countingSource{body: "bytes"}
	cs := NewCached(inner, cache.NewMemoryCache(0, 0))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		body, modTime, err := cs.Read(ctx, "known")
		require.NoError(t, err)
		assert.Equal(t, "bytes", string(body))
		assert.Equal(t, int64(1000), modTime.Unix())
	}
	assert.Equal(t, 1, inner.reads)

	_, _, err := cs.Read(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingSource struct{}

func (failingSource) Read(context.Context, string) ([]byte, time.Time, error) {
	return nil, time.Time{}, errors.New("disk on fire")
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	first := &countingSource{body: "first"}
	second := &countingSource{body: "second"}

	body, _, err := Chain{first, second}.Read(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, "first", string(body))
	assert.Equal(t, 0, second.reads)

	_, _, err = Chain{first, second}.Read(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = Chain{failingSource{}, second}.Read(ctx, "known")
	assert.EqualError(t, err, "disk on fire")
}

func TestNewSourceFromConfig(t *testing.T) {
	e := newTree(t, 1, map[string]string{"lena.jpg": "lena"})
	cfg := config.Default()
	cfg.Images.Sources = []string{"disk", "http"}

	s, err := NewSourceFromConfig(context.Background(), cfg, e, cache.NewNullCache())
	require.NoError(t, err)
	require.IsType(t, Chain{}, s)
	assert.Len(t, s.(Chain), 2)

	body, _, err := s.Read(context.Background(), "lena.jpg")
	require.NoError(t, err)
	assert.Equal(t, "lena", string(body))

	cfg.Images.Sources = []string{"disk"}
	_, err = NewSourceFromConfig(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSource downloads identifiers that are URLs, either plain, with the
// double slash collapsed by path cleaning, or base64 encoded.
type HTTPSource struct {
	client *http.Client
}

func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return &HTTPSource{client: &http.Client{Timeout: timeout}}
}

// URL extracts the remote address from an identifier.
func URL(identifier string) (string, bool) {
	for _, scheme := range []string{"http", "https"} {
		if strings.HasPrefix(identifier, scheme+"://") {
			return identifier, true
		}
		if strings.HasPrefix(identifier, scheme+":/") {
			return strings.Replace(identifier, ":/", "://", 1), true
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(identifier)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(identifier)
	}
	if err == nil {
		url := string(decoded)
		if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
			return url, true
		}
	}
	return "", false
}

func (hs *HTTPSource) Read(ctx context.Context, identifier string) ([]byte, time.Time, error) {
	url, ok := URL(identifier)
	if !ok {
		return nil, time.Time{}, ErrNotFound
	}

	debug("downloading %v", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, time.Time{}, ErrNotFound
	}

	resp, err := hs.client.Do(req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("source: download of %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, time.Time{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, time.Time{}, fmt.Errorf("source: download of %s: %s", url, resp.Status)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, time.Time{}, fmt.Errorf("source: download of %s: %w", url, err)
	}

	modTime := time.Now()
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			modTime = t
		}
	}
	return buf.Bytes(), modTime, nil
}

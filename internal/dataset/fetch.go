// Package dataset loads the yearly event, art and camp collections over
// HTTP with a conditional-request disk cache, and bundles them into
// immutable snapshots for processing.
package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	appLog "playafind/internal/log"
)

// cacheEntry holds the HTTP validators for one cached URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// fetcher performs conditional GETs (ETag / Last-Modified) with a disk
// cache keyed by a hash of the URL, falling back to the cached body when
// the network is unavailable.
type fetcher struct {
	client   *http.Client
	cacheDir string
	bytes    atomic.Int64
}

func newFetcher(cacheDir string) *fetcher {
	if cacheDir == "" {
		cacheDir = "./var/dataset-cache"
	}
	return &fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		cacheDir: cacheDir,
	}
}

// fetch returns the body for url, either fresh or from cache, and whether
// the cache was used.
func (f *fetcher) fetch(ctx context.Context, url string) ([]byte, bool, error) {
	if url == "" {
		return nil, false, errors.New("empty url")
	}

	cachePath := f.cachePathFor(url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return nil, false, err
	}

	meta, _ := f.loadMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body.json"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("dataset fetch network error, using cached body", err, "url", redactURL(url))
			return cachedBody, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, false, readErr
		}
		f.bytes.Add(int64(len(body)))

		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("dataset cache save failed", err, "url", redactURL(url))
		}
		return body, false, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, false, errors.New("304 Not Modified without a cached body")
		}
		return cachedBody, true, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("dataset fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(url), "status", resp.StatusCode)
			return cachedBody, true, nil
		}
		return nil, false, errors.New(resp.Status)
	}
}

func (f *fetcher) cachePathFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *fetcher) loadMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first, so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL trims an URL down to its host for logging.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return u[:i+3+j] + "/...(redacted)"
	}
	return u
}

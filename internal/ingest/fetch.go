package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/iptvgw/gateway/internal/fetchcache"
	"github.com/iptvgw/gateway/internal/filelock"
	"github.com/iptvgw/gateway/internal/fingerprint"
	"github.com/iptvgw/gateway/internal/httpclient"
	"github.com/iptvgw/gateway/internal/safeurl"
)

// Fetcher retrieves raw input bodies, reusing an on-disk copy while it
// remains within its configured TTL and otherwise issuing a conditional
// GET so unchanged providers cost a 304 instead of a full re-download.
// Concurrent fetches of the same URL within one process are serialised
// through Locks so only one goroutine hits the network for it.
type Fetcher struct {
	Client   *http.Client
	Cache    *fetchcache.Store
	Locks    *filelock.Manager
	CacheDir string
}

// NewFetcher returns a Fetcher using client (or httpclient.Default() if
// nil), recording conditional-GET validators in cache and storing raw
// bodies under cacheDir.
func NewFetcher(client *http.Client, cache *fetchcache.Store, locks *filelock.Manager, cacheDir string) *Fetcher {
	if client == nil {
		client = httpclient.Default()
	}
	return &Fetcher{Client: client, Cache: cache, Locks: locks, CacheDir: cacheDir}
}

// cacheFileName derives a stable on-disk filename for a fetch URL without
// leaking arbitrary path components into CacheDir.
func cacheFileName(url string) string {
	sum := fingerprint.Of(urlOnlyChannel(url))
	return fmt.Sprintf("%x.raw", sum[:16])
}

// urlOnlyChannel adapts a bare URL to fingerprint.Channel so we can reuse
// the same content-addressing scheme for on-disk fetch cache filenames.
type urlOnlyChannel string

func (u urlOnlyChannel) FingerprintProviderKey() string { return "" }
func (u urlOnlyChannel) FingerprintProviderID() string  { return "" }
func (u urlOnlyChannel) FingerprintItemType() string    { return "" }
func (u urlOnlyChannel) FingerprintURLPath() string     { return string(u) }

// FetchRaw returns the body for url. If a locally cached copy exists and
// is younger than cacheDuration, it's reused without touching the
// network; cacheDuration <= 0 always redownloads. Otherwise a conditional
// GET is issued using any previously recorded ETag/Last-Modified for this
// URL, falling back to the stale local copy on a 304.
func (f *Fetcher) FetchRaw(ctx context.Context, url string, headers map[string]string, cacheDuration time.Duration) ([]byte, error) {
	if !safeurl.IsHTTPOrHTTPS(url) {
		return nil, fmt.Errorf("ingest: refusing non-http(s) input url %q", url)
	}

	guard, err := f.Locks.WriteLock(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("ingest: lock fetch of %s: %w", url, err)
	}
	defer guard.Unlock()

	localPath := filepath.Join(f.CacheDir, cacheFileName(url))

	if cacheDuration > 0 {
		if info, err := os.Stat(localPath); err == nil {
			if time.Since(info.ModTime()) < cacheDuration {
				if body, err := os.ReadFile(localPath); err == nil {
					return body, nil
				}
			}
		}
	}

	var etag, lastModified string
	if f.Cache != nil {
		if v, ok, err := f.Cache.Lookup(url); err == nil && ok {
			etag, lastModified = v.ETag, v.LastModified
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "iptv-gateway/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := httpclient.DoWithRetry(ctx, f.Client, req, httpclient.ProviderRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if body, err := os.ReadFile(localPath); err == nil {
			return body, nil
		}
		return nil, fmt.Errorf("ingest: %s returned 304 but no local copy exists", url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ingest: read body of %s: %w", url, err)
	}

	if err := atomicWriteCacheFile(localPath, body); err != nil {
		return nil, err
	}
	if f.Cache != nil {
		_ = f.Cache.StoreValidators(url, fetchcache.Validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
		})
	}
	return body, nil
}

func atomicWriteCacheFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ingest: create cache dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("ingest: create temp fetch file: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("ingest: write cache file: %w", writeErr)
		}
		return fmt.Errorf("ingest: close cache file: %w", closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ingest: rename cache file into place: %w", err)
	}
	return nil
}

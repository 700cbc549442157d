// Package fetch downloads release artifacts and resolves versions from
// GitHub. Downloads are cached under the prefix download cache, retried
// with exponential backoff, and written via atomic tmp-file rename so an
// interrupted run never leaves a truncated artifact behind.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the default number of download retries.
	DefaultRetries = 3
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "devup/1.0"
)

// Downloader handles HTTP downloads with retry logic and caching.
type Downloader struct {
	client    *http.Client
	cacheDir  string
	userAgent string
	retries   int
	mirrors   map[string]string
}

// NewDownloader creates a downloader caching into cacheDir.
func NewDownloader(cacheDir string) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		cacheDir:  cacheDir,
		userAgent: DefaultUserAgent,
		retries:   DefaultRetries,
	}
}

// SetMirrors installs host-to-base-URL rewrites applied to every
// download URL. Keys are hostnames, values replacement base URLs.
func (d *Downloader) SetMirrors(mirrors map[string]string) {
	d.mirrors = mirrors
}

// applyMirror rewrites a URL when its host has a configured mirror.
func (d *Downloader) applyMirror(url string) string {
	for host, base := range d.mirrors {
		prefix := "https://" + host
		if rest, ok := strings.CutPrefix(url, prefix); ok && (rest == "" || rest[0] == '/') {
			return strings.TrimSuffix(base, "/") + rest
		}
	}
	return url
}

// Invalidate drops the cache entry for a tool/version pair. Installer
// scripts cached under a floating version need this on forced reruns.
func (d *Downloader) Invalidate(tool, version string) error {
	dir := filepath.Join(d.cacheDir, tool, version)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("invalidate cache for %s %s: %w", tool, version, err)
	}
	return nil
}

// Fetch downloads a URL into the cache under <tool>/<version>/<basename>
// and returns the cached path. A non-empty cached file short-circuits the
// download.
func (d *Downloader) Fetch(ctx context.Context, tool, version, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("empty download URL for %s", tool)
	}
	cachePath := filepath.Join(d.cacheDir, tool, version, filepath.Base(url))
	if fileExists(cachePath) {
		return cachePath, nil
	}
	if err := d.DownloadToFile(ctx, url, cachePath); err != nil {
		return "", fmt.Errorf("download %s: %w", tool, err)
	}
	return cachePath, nil
}

// DownloadToFile downloads a URL to a specific file path, retrying with
// exponential backoff (1s, 2s, 4s).
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string) error {
	url = d.applyMirror(url)
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := d.downloadOnce(ctx, url, destPath)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("download failed after %d retries: %w", d.retries, lastErr)
}

// downloadOnce performs a single download attempt.
func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := destPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return fmt.Errorf("copy response body: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	return nil
}

// FetchString downloads a small document (a version index, a checksum
// file) straight into memory, without caching.
func (d *Downloader) FetchString(ctx context.Context, url string) (string, error) {
	url = d.applyMirror(url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	const maxDoc = 4 * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDoc))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(data), nil
}

// fileExists checks if a file exists and is not empty.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// Package fetcher downloads a page over HTTP for the static driver.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dtnitsch/consent-audit/pkg/caching"
	"github.com/dtnitsch/consent-audit/pkg/htmldoc"
)

const (
	userAgent    = "consent-audit/1.0 (+https://github.com/dtnitsch/consent-audit)"
	maxBodyBytes = 10 << 20
)

type Fetcher struct {
	client *http.Client
	cache  *caching.Cache
	logger *slog.Logger
}

// NewFetcher returns a fetcher. cache may be nil.
func NewFetcher(cache *caching.Cache, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  cache,
		logger: logger,
	}
}

// GetDocument fetches pageURL and parses it into a static document.
func (f *Fetcher) GetDocument(ctx context.Context, pageURL string) (*htmldoc.Document, error) {
	body, finalURL, err := f.GetHTMLBytes(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return htmldoc.New(bytes.NewReader(body), finalURL)
}

// GetHTMLBytes returns the page body and the URL it was served from after redirects.
// Cached bodies report the requested URL.
func (f *Fetcher) GetHTMLBytes(ctx context.Context, pageURL string) ([]byte, string, error) {
	if f.cache != nil {
		if body, ok := f.cache.Get(pageURL); ok {
			f.logger.Debug("cache hit", "url", pageURL)
			return body, pageURL, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch HTML, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	if f.cache != nil {
		if err := f.cache.Set(pageURL, body); err != nil {
			f.logger.Warn("failed to cache page", "url", pageURL, "error", err)
		}
	}
	return body, finalURL, nil
}

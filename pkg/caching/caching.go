// Package caching keeps fetched page bodies on disk so repeated offline audits of
// the same URL do not hit the network.
package caching

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache is a directory of page bodies grouped by host, expiring after ttl.
// A zero ttl keeps entries forever.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewCache creates dir if needed.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// path maps a page URL to <dir>/<host>/<sha256>.html.
func (c *Cache) path(pageURL string) string {
	host := "_"
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		host = strings.ToLower(strings.ReplaceAll(u.Host, ":", "_"))
	}
	sum := sha256.Sum256([]byte(pageURL))
	return filepath.Join(c.dir, host, hex.EncodeToString(sum[:])+".html")
}

// Get returns the cached body and true on a fresh hit.
func (c *Cache) Get(pageURL string) ([]byte, bool) {
	p := c.path(pageURL)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(info.ModTime()) > c.ttl {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores body for pageURL, replacing any previous entry.
func (c *Cache) Set(pageURL string, body []byte) error {
	p := c.path(pageURL)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

// Delete drops the entry for pageURL. A missing entry is not an error.
func (c *Cache) Delete(pageURL string) error {
	err := os.Remove(c.path(pageURL))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

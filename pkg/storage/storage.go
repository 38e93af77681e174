// Package storage writes scan reports to an output directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dtnitsch/consent-audit/models"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a saved report.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type Storage struct {
	dir string
}

// FileStats holds metadata about a file without reading its contents.
type FileStats struct {
	SizeBytes int64
	ModTime   time.Time
}

// New returns storage rooted at dir, creating it if needed.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Encode renders v in the given format.
func Encode(v any, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(v, "", "  ")
	case FormatYAML:
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

// ScanPath is where a scan's report lives: <dir>/<host>/<scan_id>.<format>.
func (s *Storage) ScanPath(scan *models.Scan, format Format) string {
	host := "unknown"
	if h := hostOf(scan.URL); h != "" {
		host = h
	}
	if format == "" {
		format = FormatJSON
	}
	return filepath.Join(s.dir, host, scan.ScanID+"."+string(format))
}

// SaveScan writes the scan report and returns its path.
func (s *Storage) SaveScan(scan *models.Scan, format Format) (string, error) {
	data, err := Encode(scan, format)
	if err != nil {
		return "", err
	}
	path := s.ScanPath(scan, format)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("error creating report directory: %w", err)
	}
	if err := s.SaveFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// LoadScan reads a JSON or YAML report, chosen by file extension.
func (s *Storage) LoadScan(path string) (*models.Scan, error) {
	data, err := s.ReadFile(path)
	if err != nil {
		return nil, err
	}
	scan := &models.Scan{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, scan)
	default:
		err = json.Unmarshal(data, scan)
	}
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	return scan, nil
}

func (s *Storage) SaveFile(filePath string, content []byte) error {
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}

func (s *Storage) ReadFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return data, nil
}

// GetFileStats returns metadata about a file using os.Stat.
func (s *Storage) GetFileStats(filePath string) (*FileStats, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("error getting file stats: %w", err)
	}
	return &FileStats{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

func hostOf(rawURL string) string {
	rest := rawURL
	if _, after, ok := strings.Cut(rawURL, "://"); ok {
		rest = after
	}
	host, _, _ := strings.Cut(rest, "/")
	host = strings.ToLower(strings.ReplaceAll(host, ":", "_"))
	if strings.ContainsAny(host, `\?#@`) {
		return ""
	}
	return host
}

package common

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/storage"
	"github.com/urfave/cli/v2"
)

var (
	markdownLinkPattern = regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)
	urlPattern          = regexp.MustCompile(`^https?://[a-zA-Z0-9][-a-zA-Z0-9.]*[a-zA-Z0-9](:[0-9]+)?(/[^\s]*)?$`)
)

// NewLogger builds the JSON stderr logger from the global --quiet and --verbose flags.
func NewLogger(c *cli.Context) *slog.Logger {
	return newLogger(os.Stderr, c.Bool("quiet"), c.Bool("verbose"))
}

func newLogger(w io.Writer, quiet, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// LoadConfig reads --config and applies any flags the user set on top of it.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("driver") {
		cfg.Driver = models.Driver(c.String("driver"))
	}
	if c.IsSet("headful") {
		cfg.Headless = !c.Bool("headful")
	}
	if c.IsSet("inject-after") {
		cfg.InjectAfter = c.Duration("inject-after")
	}
	if c.IsSet("settle") {
		cfg.Settle = c.Duration("settle")
	}
	if c.IsSet("max-wait") {
		cfg.MaxWait = c.Duration("max-wait")
	}
	if c.IsSet("retry-interval") {
		cfg.RetryInterval = c.Duration("retry-interval")
	}
	if c.IsSet("injections") {
		cfg.Injections = SplitList(c.String("injections"))
	}
	if c.IsSet("gate-heuristics") {
		cfg.GateHeuristics = c.Bool("gate-heuristics")
	}
	if c.IsSet("auto-profile") {
		cfg.AutoProfile = c.Bool("auto-profile")
	}
	if c.IsSet("no-lang") {
		cfg.DetectLanguage = !c.Bool("no-lang")
	}
	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("cache-dir") {
		cfg.CacheDir = c.String("cache-dir")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SplitList splits a comma-separated flag value, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PrintOutput writes v to w as JSON or YAML.
func PrintOutput(w io.Writer, v any, format string) error {
	data, err := storage.Encode(v, storage.Format(strings.ToLower(format)))
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

// SanitizeURL performs basic cleanup on URLs to handle common copy-paste issues:
// edge whitespace, markdown link syntax and stray wrapping punctuation.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	// [text](url) -> url
	if matches := markdownLinkPattern.FindStringSubmatch(cleaned); len(matches) > 1 {
		cleaned = matches[1]
	}

	cleaned = strings.TrimRight(cleaned, `,.)}]"'>;`)
	cleaned = strings.TrimLeft(cleaned, `([<"'`)

	return strings.TrimSpace(cleaned)
}

// SanitizeAndValidateURLs returns (sanitized URLs, invalid URLs).
// Only absolute http and https URLs with a plausible host are audited.
func SanitizeAndValidateURLs(urls []string) ([]string, []string) {
	sanitized := make([]string, 0, len(urls))
	var invalidURLs []string

	for _, rawURL := range urls {
		cleaned := SanitizeURL(rawURL)
		if !validURL(cleaned) {
			invalidURLs = append(invalidURLs, rawURL)
			continue
		}
		sanitized = append(sanitized, cleaned)
	}

	return sanitized, invalidURLs
}

func validURL(s string) bool {
	if s == "" || strings.Contains(s, " ") || !urlPattern.MatchString(s) {
		return false
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != "" && !strings.ContainsAny(parsed.Host, `{}[]<>"'`)
}

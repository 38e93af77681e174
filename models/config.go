// Package models defines data structures for configuration, audit results and link data.
package models

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver names the backend that provides the page document.
type Driver string

const (
	DriverStatic     Driver = "static"
	DriverRod        Driver = "rod"
	DriverPlaywright Driver = "playwright"
)

// DefaultPromptID is the identifier used by the demo consent page.
const DefaultPromptID = "consent_prompt"

// DefaultInjections is the canonical audit sequence: presence, reject, accept.
var DefaultInjections = []string{"consent_prompt_exists", "reject_consent", "accept_consent"}

// SiteProfile carries the site-specific identifiers and keywords for one host.
type SiteProfile struct {
	Host          string `yaml:"host"`
	PromptID      string `yaml:"prompt_id,omitempty"`
	AcceptID      string `yaml:"accept_id,omitempty"`
	RejectID      string `yaml:"reject_id,omitempty"`
	AcceptKeyword string `yaml:"accept_keyword,omitempty"`
	RejectKeyword string `yaml:"reject_keyword,omitempty"`
}

// Config holds runtime configuration for audits.
// Values come from an optional YAML file and are overridden by CLI flags.
type Config struct {
	Driver         Driver        `yaml:"driver"`
	Headless       bool          `yaml:"headless"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	MaxWait        time.Duration `yaml:"max_wait"`
	InjectAfter    time.Duration `yaml:"inject_after"`
	Settle         time.Duration `yaml:"settle"`
	Injections     []string      `yaml:"injections"`
	GateHeuristics bool          `yaml:"gate_heuristics"`
	AutoProfile    bool          `yaml:"auto_profile"`
	DetectLanguage bool          `yaml:"detect_language"`
	DBPath         string        `yaml:"db_path,omitempty"`
	OutputDir      string        `yaml:"output_dir,omitempty"`
	CacheDir       string        `yaml:"cache_dir,omitempty"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	Sites          []SiteProfile `yaml:"sites,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Driver:         DriverStatic,
		Headless:       true,
		RetryInterval:  time.Second,
		MaxWait:        60 * time.Second,
		InjectAfter:    3 * time.Second,
		Settle:         2 * time.Second,
		Injections:     append([]string(nil), DefaultInjections...),
		DetectLanguage: true,
		CacheTTL:       time.Hour,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the driver and durations. Unit names are checked by the injection package.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverStatic, DriverRod, DriverPlaywright:
	default:
		return fmt.Errorf("unknown driver %q (want static, rod or playwright)", c.Driver)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be positive, got %s", c.RetryInterval)
	}
	if c.MaxWait < 0 || c.InjectAfter < 0 || c.Settle < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if len(c.Injections) == 0 {
		return fmt.Errorf("no injections configured")
	}
	return nil
}

// ProfileFor returns the site profile whose host matches the given host, falling back
// to a profile with the demo prompt identifier and the default keywords.
func (c *Config) ProfileFor(host string) SiteProfile {
	p, _ := c.LookupProfile(host)
	return p
}

// LookupProfile is ProfileFor that also reports whether a configured profile matched.
// A profile host matches the host itself and any subdomain of it.
func (c *Config) LookupProfile(host string) (SiteProfile, bool) {
	host = strings.ToLower(host)
	for _, p := range c.Sites {
		h := strings.ToLower(p.Host)
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return p.withDefaults(), true
		}
	}
	return SiteProfile{Host: host}.withDefaults(), false
}

func (p SiteProfile) withDefaults() SiteProfile {
	if p.PromptID == "" {
		p.PromptID = DefaultPromptID
	}
	if p.AcceptKeyword == "" {
		p.AcceptKeyword = string(RoleAccept)
	}
	if p.RejectKeyword == "" {
		p.RejectKeyword = string(RoleReject)
	}
	return p
}

package models

import "time"

// Scan is the record of one audited page.
type Scan struct {
	ScanID     string            `json:"scan_id" yaml:"scan_id"`
	URL        string            `json:"url" yaml:"url"`
	Driver     Driver            `json:"driver" yaml:"driver"`
	StartedAt  time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time         `json:"finished_at" yaml:"finished_at"`
	Injections []InjectionResult `json:"injection_results" yaml:"injection_results"`
	Links      []LinkRecord      `json:"links" yaml:"links"`
	Meta       PageMeta          `json:"meta" yaml:"meta"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration is how long the scan ran.
func (s *Scan) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

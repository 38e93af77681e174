package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dtnitsch/consent-audit/models"
)

// ErrScanNotFound is returned when no scan has the requested id.
var ErrScanNotFound = errors.New("scan not found")

// ScanSummary is one row of the scan listing.
type ScanSummary struct {
	ScanID     string
	URL        string
	Domain     string
	Driver     string
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
	LinkCount  int
	// Prompt is the captured consent_prompt_exists value, empty when it was not injected.
	Prompt string
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// InsertURL parses and inserts a URL, returning the url_id.
// If the URL already exists, returns the existing url_id.
func (db *DB) InsertURL(rawURL string) (int64, error) {
	return insertURL(db, rawURL)
}

func insertURL(q querier, rawURL string) (int64, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}

	var existingID int64
	err = q.QueryRow("SELECT url_id FROM urls WHERE original_url = ?", rawURL).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to check existing URL: %w", err)
	}

	canonicalURL := fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, parsed.Path)
	result, err := q.Exec(`
		INSERT INTO urls (original_url, canonical_url, scheme, domain, path)
		VALUES (?, ?, ?, ?, ?)
	`, rawURL, canonicalURL, parsed.Scheme, strings.ToLower(parsed.Hostname()), parsed.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to insert URL: %w", err)
	}

	urlID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get URL ID: %w", err)
	}
	return urlID, nil
}

// SaveScan stores a scan with its injection results and links in one transaction.
func (db *DB) SaveScan(scan *models.Scan) error {
	if scan.ScanID == "" {
		return fmt.Errorf("scan has no id")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	urlID, err := insertURL(tx, scan.URL)
	if err != nil {
		return err
	}

	m := scan.Meta
	_, err = tx.Exec(`
		INSERT INTO scans (scan_id, url_id, driver, started_at, finished_at, error,
			final_url, title, meta_desc, html_lang, detected_lang, excerpt, text_length,
			consent_platform, country, opt_in_regime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.ScanID, urlID, string(scan.Driver), scan.StartedAt.UTC(), scan.FinishedAt.UTC(), scan.Error,
		m.FinalURL, m.Title, m.MetaDesc, m.HTMLLang, m.DetectedLang, m.Excerpt, m.TextLength,
		m.ConsentPlatform, m.Country, m.OptInRegime)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	for i, r := range scan.Injections {
		if _, err := tx.Exec(`
			INSERT INTO injection_results (scan_id, position, script_name, result)
			VALUES (?, ?, ?, ?)
		`, scan.ScanID, i, r.ScriptName, r.Result); err != nil {
			return fmt.Errorf("failed to insert injection result %s: %w", r.ScriptName, err)
		}
	}

	for i, l := range scan.Links {
		if _, err := tx.Exec(`
			INSERT INTO links (scan_id, position, text, href, protocol)
			VALUES (?, ?, ?, ?, ?)
		`, scan.ScanID, i, l.Text, l.Href, l.Protocol); err != nil {
			return fmt.Errorf("failed to insert link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan: %w", err)
	}
	return nil
}

// GetScan loads a full scan by id.
func (db *DB) GetScan(scanID string) (*models.Scan, error) {
	scan := &models.Scan{ScanID: scanID}
	var driver string
	var scanErr sql.NullString
	m := &scan.Meta

	err := db.QueryRow(`
		SELECT u.original_url, s.driver, s.started_at, s.finished_at, s.error,
			s.final_url, s.title, s.meta_desc, s.html_lang, s.detected_lang, s.excerpt, s.text_length,
			COALESCE(s.consent_platform, ''), COALESCE(s.country, ''), s.opt_in_regime
		FROM scans s
		JOIN urls u ON u.url_id = s.url_id
		WHERE s.scan_id = ?
	`, scanID).Scan(&scan.URL, &driver, &scan.StartedAt, &scan.FinishedAt, &scanErr,
		&m.FinalURL, &m.Title, &m.MetaDesc, &m.HTMLLang, &m.DetectedLang, &m.Excerpt, &m.TextLength,
		&m.ConsentPlatform, &m.Country, &m.OptInRegime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", scanID, ErrScanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scan: %w", err)
	}
	scan.Driver = models.Driver(driver)
	scan.Error = scanErr.String

	if scan.Injections, err = db.injectionResults(scanID); err != nil {
		return nil, err
	}
	if scan.Links, err = db.links(scanID); err != nil {
		return nil, err
	}
	return scan, nil
}

func (db *DB) injectionResults(scanID string) ([]models.InjectionResult, error) {
	rows, err := db.Query(`
		SELECT script_name, result FROM injection_results
		WHERE scan_id = ? ORDER BY position
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query injection results: %w", err)
	}
	defer rows.Close()

	var out []models.InjectionResult
	for rows.Next() {
		var r models.InjectionResult
		if err := rows.Scan(&r.ScriptName, &r.Result); err != nil {
			return nil, fmt.Errorf("failed to scan injection result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) links(scanID string) ([]models.LinkRecord, error) {
	rows, err := db.Query(`
		SELECT text, href, protocol FROM links
		WHERE scan_id = ? ORDER BY position
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var out []models.LinkRecord
	for rows.Next() {
		var l models.LinkRecord
		if err := rows.Scan(&l.Text, &l.Href, &l.Protocol); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListScans returns the newest scans first. domain filters by host when set;
// limit <= 0 means no limit.
func (db *DB) ListScans(domain string, limit int) ([]ScanSummary, error) {
	query := `
		SELECT s.scan_id, u.original_url, u.domain, s.driver, s.started_at, s.finished_at,
			COALESCE(s.error, ''),
			(SELECT COUNT(*) FROM links l WHERE l.scan_id = s.scan_id),
			COALESCE((SELECT r.result FROM injection_results r
				WHERE r.scan_id = s.scan_id AND r.script_name = 'consent_prompt_exists'
				ORDER BY r.position LIMIT 1), '')
		FROM scans s
		JOIN urls u ON u.url_id = s.url_id`
	var args []any
	if domain != "" {
		query += " WHERE u.domain = ?"
		args = append(args, strings.ToLower(domain))
	}
	query += " ORDER BY s.started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var out []ScanSummary
	for rows.Next() {
		var s ScanSummary
		if err := rows.Scan(&s.ScanID, &s.URL, &s.Domain, &s.Driver, &s.StartedAt, &s.FinishedAt,
			&s.Error, &s.LinkCount, &s.Prompt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteScan removes a scan and its results.
func (db *DB) DeleteScan(scanID string) error {
	res, err := db.Exec("DELETE FROM scans WHERE scan_id = ?", scanID)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", scanID, ErrScanNotFound)
	}
	return nil
}

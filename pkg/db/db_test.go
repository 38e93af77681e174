package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dtnitsch/consent-audit/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Use in-memory database for tests
	database := &DB{path: ":memory:"}
	var err error
	database.DB, err = openDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return database
}

func testScan(id, rawURL string, started time.Time) *models.Scan {
	return &models.Scan{
		ScanID:     id,
		URL:        rawURL,
		Driver:     models.DriverStatic,
		StartedAt:  started,
		FinishedAt: started.Add(4 * time.Second),
		Injections: []models.InjectionResult{
			{ScriptName: "consent_prompt_exists", Result: "true"},
			{ScriptName: "reject_consent", Result: "false"},
			{ScriptName: "accept_consent", Result: "true"},
		},
		Links: []models.LinkRecord{
			{Text: "Privacy", Href: "https://demo.test/privacy", Protocol: "https:"},
			{Text: "Privacy", Href: "https://demo.test/privacy", Protocol: "https:"},
			{Text: "Mail", Href: "mailto:dpo@demo.test", Protocol: "mailto:"},
		},
		Meta: models.PageMeta{FinalURL: rawURL, Title: "Demo", HTMLLang: "en", TextLength: 42,
			ConsentPlatform: "onetrust", Country: "unknown"},
	}
}

func TestInsertURL(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	id1, err := db.InsertURL("https://Demo.test/path?q=1")
	if err != nil {
		t.Fatalf("InsertURL() error = %v", err)
	}
	id2, err := db.InsertURL("https://Demo.test/path?q=1")
	if err != nil {
		t.Fatalf("InsertURL() second call error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("InsertURL() returned %d then %d for the same URL", id1, id2)
	}

	var domain, canonical string
	if err := db.QueryRow("SELECT domain, canonical_url FROM urls WHERE url_id = ?", id1).Scan(&domain, &canonical); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if domain != "demo.test" || canonical != "https://Demo.test/path" {
		t.Errorf("domain = %q canonical = %q", domain, canonical)
	}
}

func TestSaveAndGetScan(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := testScan("scan-1", "https://demo.test/", started)
	if err := db.SaveScan(want); err != nil {
		t.Fatalf("SaveScan() error = %v", err)
	}

	got, err := db.GetScan("scan-1")
	if err != nil {
		t.Fatalf("GetScan() error = %v", err)
	}
	if got.URL != want.URL || got.Driver != want.Driver || got.Meta != want.Meta {
		t.Errorf("GetScan() = %+v, want %+v", got, want)
	}
	if !got.StartedAt.Equal(want.StartedAt) || got.Duration() != 4*time.Second {
		t.Errorf("times = %v .. %v", got.StartedAt, got.FinishedAt)
	}
	if len(got.Injections) != 3 || got.Injections[1] != want.Injections[1] {
		t.Errorf("injections = %+v", got.Injections)
	}
	if len(got.Links) != 3 || got.Links[2] != want.Links[2] {
		t.Errorf("links = %+v, duplicates and order must be kept", got.Links)
	}
}

func TestSaveScan_DuplicateIDRollsBack(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	now := time.Now()
	if err := db.SaveScan(testScan("dup", "https://demo.test/", now)); err != nil {
		t.Fatalf("SaveScan() error = %v", err)
	}
	if err := db.SaveScan(testScan("dup", "https://demo.test/", now)); err == nil {
		t.Fatal("SaveScan() accepted a duplicate scan id")
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM links WHERE scan_id = 'dup'").Scan(&n); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if n != 3 {
		t.Errorf("links count = %d after failed save, want 3", n)
	}
}

func TestGetScan_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetScan("missing")
	if !errors.Is(err, ErrScanNotFound) {
		t.Errorf("GetScan() error = %v, want ErrScanNotFound", err)
	}
}

func TestListScans(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scans := []*models.Scan{
		testScan("a", "https://demo.test/", base),
		testScan("b", "https://shop.test/", base.Add(time.Minute)),
		testScan("c", "https://demo.test/about", base.Add(2*time.Minute)),
	}
	scans[1].Injections = nil
	for _, s := range scans {
		if err := db.SaveScan(s); err != nil {
			t.Fatalf("SaveScan(%s) error = %v", s.ScanID, err)
		}
	}

	tests := []struct {
		name   string
		domain string
		limit  int
		want   []string
	}{
		{"all newest first", "", 0, []string{"c", "b", "a"}},
		{"limit", "", 2, []string{"c", "b"}},
		{"domain", "DEMO.test", 0, []string{"c", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListScans(tt.domain, tt.limit)
			if err != nil {
				t.Fatalf("ListScans() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListScans() returned %d rows, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ScanID != id {
					t.Errorf("row %d = %s, want %s", i, got[i].ScanID, id)
				}
			}
		})
	}

	all, _ := db.ListScans("", 0)
	if all[0].LinkCount != 3 || all[0].Prompt != "true" {
		t.Errorf("summary = %+v", all[0])
	}
	if all[1].Prompt != "" {
		t.Errorf("prompt for a scan without the presence check = %q", all[1].Prompt)
	}
}

func TestDeleteScan(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.SaveScan(testScan("gone", "https://demo.test/", time.Now())); err != nil {
		t.Fatalf("SaveScan() error = %v", err)
	}
	if err := db.DeleteScan("gone"); err != nil {
		t.Fatalf("DeleteScan() error = %v", err)
	}
	var n int
	_ = db.QueryRow("SELECT COUNT(*) FROM injection_results WHERE scan_id = 'gone'").Scan(&n)
	if n != 0 {
		t.Errorf("injection results left after delete: %d", n)
	}
	if err := db.DeleteScan("gone"); !errors.Is(err, ErrScanNotFound) {
		t.Errorf("second DeleteScan() error = %v", err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q", db.Path())
	}
	if err := db.InitSchema(); err != nil {
		t.Errorf("InitSchema() on an existing database: %v", err)
	}
}

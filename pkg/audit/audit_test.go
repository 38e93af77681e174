package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/browser"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/dtnitsch/consent-audit/pkg/htmldoc"
	"github.com/google/uuid"
)

const bannerPage = `<html lang="en"><head><title>Demo shop</title></head><body>
<div id="consent_prompt"><p>We use cookies on this site.</p><button id="no">Reject all</button><button id="yes">Accept all</button></div>
<a href="/privacy">Privacy</a><a href="/privacy">Privacy</a><a href="mailto:dpo@demo.test">Mail us</a>
</body></html>`

func testConfig() *models.Config {
	cfg := models.DefaultConfig()
	cfg.InjectAfter = 0
	cfg.Settle = 0
	cfg.RetryInterval = 5 * time.Millisecond
	cfg.MaxWait = 50 * time.Millisecond
	cfg.DetectLanguage = false
	cfg.Sites = []models.SiteProfile{{Host: "demo.test", AcceptID: "yes", RejectID: "no"}}
	return cfg
}

// staticOpener serves pre-built documents by URL and remembers them for inspection.
type staticOpener struct {
	mu    sync.Mutex
	pages map[string]string
	docs  map[string]*htmldoc.Document
	state dom.ReadyState
}

func newStaticOpener(pages map[string]string) *staticOpener {
	return &staticOpener{pages: pages, docs: map[string]*htmldoc.Document{}, state: dom.StateComplete}
}

func (o *staticOpener) Open(_ context.Context, rawURL string) (dom.Page, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	html, ok := o.pages[rawURL]
	if !ok {
		return nil, errors.New("connection refused")
	}
	doc, err := htmldoc.FromString(html, rawURL)
	if err != nil {
		return nil, err
	}
	doc.SetReadyState(o.state)
	o.docs[rawURL] = doc
	return doc, nil
}

func (o *staticOpener) doc(rawURL string) *htmldoc.Document {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.docs[rawURL]
}

var _ browser.Opener = (*staticOpener)(nil)

func setupAuditor(t *testing.T, cfg *models.Config, opener browser.Opener) *Auditor {
	t.Helper()
	return New(cfg, opener, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAudit_CanonicalSequence(t *testing.T) {
	opener := newStaticOpener(map[string]string{"https://demo.test/": bannerPage})
	a := setupAuditor(t, testConfig(), opener)

	scan, err := a.Audit(context.Background(), "https://demo.test/")
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}

	if _, err := uuid.Parse(scan.ScanID); err != nil {
		t.Errorf("scan id %q is not a uuid: %v", scan.ScanID, err)
	}
	if scan.Driver != models.DriverStatic || scan.Error != "" {
		t.Errorf("unexpected scan header: %+v", scan)
	}
	if scan.FinishedAt.Before(scan.StartedAt) {
		t.Errorf("finished %v before started %v", scan.FinishedAt, scan.StartedAt)
	}

	want := []models.InjectionResult{
		{ScriptName: "consent_prompt_exists", Result: "true"},
		{ScriptName: "reject_consent", Result: "true"},
		{ScriptName: "accept_consent", Result: "true"},
	}
	if len(scan.Injections) != len(want) {
		t.Fatalf("injections = %+v", scan.Injections)
	}
	for i := range want {
		if scan.Injections[i] != want[i] {
			t.Errorf("injection %d = %+v, want %+v", i, scan.Injections[i], want[i])
		}
	}

	if len(scan.Links) != 3 {
		t.Fatalf("links = %+v", scan.Links)
	}
	if scan.Links[0] != scan.Links[1] || scan.Links[2].Protocol != "mailto:" {
		t.Errorf("links = %+v", scan.Links)
	}
	if scan.Meta.Title != "Demo shop" || scan.Meta.HTMLLang != "en" {
		t.Errorf("meta = %+v", scan.Meta)
	}
}

func TestAudit_ByIDUnitsUseSiteProfile(t *testing.T) {
	opener := newStaticOpener(map[string]string{"https://www.demo.test/": bannerPage})
	cfg := testConfig()
	cfg.Injections = []string{"reject_consent_by_id", "load_accept_consent_by_id"}
	a := setupAuditor(t, cfg, opener)

	scan, err := a.Audit(context.Background(), "https://www.demo.test/")
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if len(scan.Injections) != 1 || scan.Injections[0].Result != "true" {
		t.Errorf("injections = %+v", scan.Injections)
	}
	clicks := opener.doc("https://www.demo.test/").Clicks()
	if len(clicks) != 2 || clicks[0].ID != "no" || clicks[1].ID != "yes" {
		t.Errorf("clicks = %+v", clicks)
	}
}

func TestAudit_UnknownUnit(t *testing.T) {
	cfg := testConfig()
	cfg.Injections = []string{"consent_prompt_exists", "steal_cookies"}
	a := setupAuditor(t, cfg, newStaticOpener(nil))

	scan, err := a.Audit(context.Background(), "https://demo.test/")
	if err == nil || !strings.Contains(err.Error(), "unable to inject steal_cookies") {
		t.Fatalf("Audit() error = %v", err)
	}
	if scan != nil {
		t.Errorf("expected no scan, got %+v", scan)
	}
}

func TestAudit_OpenFailure(t *testing.T) {
	a := setupAuditor(t, testConfig(), newStaticOpener(nil))

	scan, err := a.Audit(context.Background(), "https://down.test/")
	if err == nil {
		t.Fatal("Audit() returned nil error for an unreachable page")
	}
	if scan == nil || !strings.Contains(scan.Error, "connection refused") {
		t.Errorf("scan = %+v", scan)
	}
}

func TestAudit_InterruptedDuringInjectDelay(t *testing.T) {
	cfg := testConfig()
	cfg.InjectAfter = time.Hour
	a := setupAuditor(t, cfg, newStaticOpener(map[string]string{"https://demo.test/": bannerPage}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Audit(ctx, "https://demo.test/")
	if !IsInterrupted(err) {
		t.Errorf("Audit() error = %v, want an interruption", err)
	}
}

func TestAudit_DeferredTriggerFiresDuringSettle(t *testing.T) {
	opener := newStaticOpener(map[string]string{"https://demo.test/": bannerPage})
	opener.state = dom.StateLoading
	cfg := testConfig()
	cfg.Injections = []string{"accept_consent_by_id"}
	cfg.Settle = 300 * time.Millisecond
	a := setupAuditor(t, cfg, opener)

	go func() {
		for opener.doc("https://demo.test/") == nil {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(30 * time.Millisecond)
		opener.doc("https://demo.test/").SetReadyState(dom.StateComplete)
	}()

	scan, err := a.Audit(context.Background(), "https://demo.test/")
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if scan.Injections[0].Result != "null" {
		t.Errorf("pending result = %s, want null", scan.Injections[0].Result)
	}
	clicks := opener.doc("https://demo.test/").Clicks()
	if len(clicks) != 1 || clicks[0].ID != "yes" {
		t.Errorf("deferred trigger clicks = %+v", clicks)
	}
}

func TestAudit_RetriesDroppedAfterScan(t *testing.T) {
	opener := newStaticOpener(map[string]string{"https://demo.test/": bannerPage})
	opener.state = dom.StateLoading
	cfg := testConfig()
	cfg.Injections = []string{"accept_consent_by_id"}
	cfg.MaxWait = 10 * time.Millisecond
	a := setupAuditor(t, cfg, opener)

	if _, err := a.Audit(context.Background(), "https://demo.test/"); err != nil {
		t.Fatalf("Audit() error: %v", err)
	}

	doc := opener.doc("https://demo.test/")
	doc.SetReadyState(dom.StateComplete)
	time.Sleep(50 * time.Millisecond)
	if len(doc.Clicks()) != 0 {
		t.Errorf("retry fired after the scan closed: %+v", doc.Clicks())
	}
}

func TestAuditAll(t *testing.T) {
	opener := newStaticOpener(map[string]string{
		"https://demo.test/":      bannerPage,
		"https://demo.test/about": `<main><a href="/">Home</a></main>`,
	})
	a := setupAuditor(t, testConfig(), opener)

	urls := []string{"https://demo.test/", "https://down.test/", "https://demo.test/about"}
	results := a.AuditAll(context.Background(), urls, 2)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("result %d is for %s, want %s", i, r.URL, urls[i])
		}
	}
	if Failed(results) != 1 || results[1].Err == nil {
		t.Errorf("expected only the unreachable page to fail: %+v", results)
	}
	if results[2].Scan.Injections[0].Result != "false" {
		t.Errorf("presence check on a page without a prompt = %s", results[2].Scan.Injections[0].Result)
	}
}

func TestAudit_AutoProfileFromPlatform(t *testing.T) {
	page := `<html><head><script src="https://cdn.cookielaw.org/scripttemplates/otSDKStub.js"></script></head><body>
<div id="onetrust-banner-sdk"><button id="onetrust-reject-all-handler">No thanks</button>
<button id="onetrust-accept-btn-handler">OK</button></div></body></html>`
	opener := newStaticOpener(map[string]string{"https://news.test/": page})
	cfg := testConfig()
	cfg.AutoProfile = true
	cfg.Injections = []string{"consent_prompt_exists", "reject_consent_by_id"}
	a := setupAuditor(t, cfg, opener)

	scan, err := a.Audit(context.Background(), "https://news.test/")
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if scan.Injections[0].Result != "true" || scan.Injections[1].Result != "true" {
		t.Errorf("injections = %+v", scan.Injections)
	}
	if scan.Meta.ConsentPlatform != "onetrust" {
		t.Errorf("consent platform = %q", scan.Meta.ConsentPlatform)
	}
	clicks := opener.doc("https://news.test/").Clicks()
	if len(clicks) != 1 || clicks[0].ID != "onetrust-reject-all-handler" {
		t.Errorf("clicks = %+v", clicks)
	}
}

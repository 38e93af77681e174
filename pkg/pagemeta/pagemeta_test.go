package pagemeta

import (
	"strings"
	"testing"

	"github.com/dtnitsch/consent-audit/pkg/htmldoc"
)

const articlePage = `<!doctype html>
<html lang="en-GB">
<head>
  <title>
    Privacy at Demo Shop
  </title>
  <meta name="Description" content="How we handle your data.">
  <script>var tracking = true;</script>
</head>
<body>
  <div id="consent_prompt"><button>Accept</button><button>Reject</button></div>
  <article>
    <h1>Our privacy promise</h1>
    <p>We collect only the information needed to process your order and deliver it to you.
    Analytics cookies are set only after you have given your consent through the banner.</p>
    <p>You can withdraw your consent at any time from the settings page, and we will delete
    the analytics data associated with your browser within thirty days of the request.</p>
    <p>Questions about this policy can be sent to our data protection officer by email.</p>
  </article>
</body>
</html>`

func TestFromHTML(t *testing.T) {
	c := NewCollector(false)

	meta, err := c.FromHTML("https://demo.test/privacy", articlePage)
	if err != nil {
		t.Fatalf("FromHTML() error: %v", err)
	}

	if meta.FinalURL != "https://demo.test/privacy" {
		t.Errorf("FinalURL = %q", meta.FinalURL)
	}
	if meta.Title != "Privacy at Demo Shop" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.MetaDesc != "How we handle your data." {
		t.Errorf("MetaDesc = %q", meta.MetaDesc)
	}
	if meta.HTMLLang != "en-GB" {
		t.Errorf("HTMLLang = %q", meta.HTMLLang)
	}
	if meta.DetectedLang != "" {
		t.Errorf("DetectedLang = %q with detection disabled", meta.DetectedLang)
	}
	if meta.TextLength == 0 || meta.Excerpt == "" {
		t.Errorf("expected page text, got length %d excerpt %q", meta.TextLength, meta.Excerpt)
	}
	if strings.Contains(meta.Excerpt, "tracking") {
		t.Errorf("excerpt contains script text: %q", meta.Excerpt)
	}
}

func TestFromHTML_DetectLanguage(t *testing.T) {
	c := NewCollector(true)

	meta, err := c.FromHTML("https://demo.test/privacy", articlePage)
	if err != nil {
		t.Fatalf("FromHTML() error: %v", err)
	}
	if meta.DetectedLang != "en" {
		t.Errorf("DetectedLang = %q, want en", meta.DetectedLang)
	}
}

func TestFromHTML_EmptyPage(t *testing.T) {
	meta, err := NewCollector(true).FromHTML("", "<html><body></body></html>")
	if err != nil {
		t.Fatalf("FromHTML() error: %v", err)
	}
	if meta.Title != "" || meta.TextLength != 0 || meta.DetectedLang != "" {
		t.Errorf("expected empty metadata, got %+v", meta)
	}
}

func TestCollect(t *testing.T) {
	doc, err := htmldoc.FromString(articlePage, "https://demo.test/privacy")
	if err != nil {
		t.Fatalf("failed to parse page: %v", err)
	}

	meta, err := NewCollector(false).Collect(doc)
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if meta.Title != "Privacy at Demo Shop" || meta.FinalURL != "https://demo.test/privacy" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo world", 5); got != "héllo" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
}

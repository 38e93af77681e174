// Package pagemeta harvests descriptive data from a loaded page: title, meta
// description, declared and detected language, and the readable text excerpt.
package pagemeta

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/detector"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/go-shiori/go-readability"
	"github.com/pemistahl/lingua-go"
)

const excerptLen = 200

// detectable is kept small: building a detector for every language costs
// several hundred MB.
var detectable = []lingua.Language{
	lingua.English, lingua.German, lingua.French, lingua.Spanish, lingua.Italian,
	lingua.Dutch, lingua.Portuguese, lingua.Polish, lingua.Swedish, lingua.Danish,
}

type Collector struct {
	detectLanguage bool

	once     sync.Once
	detector lingua.LanguageDetector
}

// NewCollector returns a collector; language detection is optional.
func NewCollector(detectLanguage bool) *Collector {
	return &Collector{detectLanguage: detectLanguage}
}

// Collect snapshots the document's HTML and extracts metadata from it.
func (c *Collector) Collect(doc dom.Document) (models.PageMeta, error) {
	html, err := doc.OuterHTML()
	if err != nil {
		return models.PageMeta{}, fmt.Errorf("failed to read page HTML: %w", err)
	}
	pageURL, _ := doc.URL()
	return c.FromHTML(pageURL, html)
}

// FromHTML extracts metadata from an HTML snapshot.
func (c *Collector) FromHTML(pageURL, html string) (models.PageMeta, error) {
	meta := models.PageMeta{FinalURL: pageURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return meta, fmt.Errorf("failed to parse HTML: %w", err)
	}

	meta.Title = normalizeText(doc.Find("title").First().Text())
	meta.HTMLLang = strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr("name", ""), "description") {
			meta.MetaDesc = normalizeText(s.AttrOr("content", ""))
			return false
		}
		return true
	})

	signals := detector.Analyze(pageURL, doc)
	meta.ConsentPlatform = signals.PlatformName()
	meta.Country = signals.Country
	meta.OptInRegime = signals.OptIn

	text, excerpt := readableText(pageURL, html, doc)
	meta.TextLength = len(text)
	meta.Excerpt = excerpt
	if meta.Title == "" {
		meta.Title = normalizeText(doc.Find("h1").First().Text())
	}

	if c.detectLanguage && text != "" {
		if lang, ok := c.languageDetector().DetectLanguageOf(text); ok {
			meta.DetectedLang = strings.ToLower(lang.IsoCode639_1().String())
		}
	}
	return meta, nil
}

func (c *Collector) languageDetector() lingua.LanguageDetector {
	c.once.Do(func() {
		c.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectable...).
			Build()
	})
	return c.detector
}

// readableText runs readability over the page and falls back to the body text
// when no article can be found.
func readableText(pageURL, html string, doc *goquery.Document) (string, string) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = &url.URL{}
	}

	var text, excerpt string
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), parsedURL)
	if err == nil {
		if content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			text = normalizeText(content.Text())
		}
		excerpt = normalizeText(article.Excerpt)
	}
	if text == "" {
		body := doc.Find("body").First().Clone()
		body.Find("script, style, noscript, template").Remove()
		text = normalizeText(body.Text())
	}
	if excerpt == "" {
		excerpt = truncate(text, excerptLen)
	}
	return text, excerpt
}

// normalizeText trims each line and joins the non-empty ones with single spaces.
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 64*1024), len(input)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

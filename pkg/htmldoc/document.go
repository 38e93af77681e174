// Package htmldoc implements dom.Document over a parsed static HTML page.
// Clicks are recorded and dispatched to handlers registered with OnClick,
// which is how tests and offline audits model a page reacting to activation.
package htmldoc

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/dtnitsch/consent-audit/pkg/links"
	"golang.org/x/net/html"
)

// Click is one recorded activation.
type Click struct {
	Tag  string
	ID   string
	Text string
}

// ClickHandler reacts to a click on an element matching its selector.
// It runs while the document is locked and must not call Document methods.
type ClickHandler func(s *goquery.Selection) error

type handler struct {
	selector string
	fn       ClickHandler
}

// Document is a static page. It is safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	doc      *goquery.Document
	pageURL  string
	base     *url.URL
	state    dom.ReadyState
	handlers []handler
	clicks   []Click
}

// New parses HTML from r. pageURL is used to resolve relative links and may be empty.
// The document starts in the complete state.
func New(r io.Reader, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := &Document{
		doc:     doc,
		pageURL: pageURL,
		state:   dom.StateComplete,
	}
	if pageURL != "" {
		base, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
		}
		d.base = base
	}
	d.applyBaseElement()
	return d, nil
}

// FromString parses an HTML string.
func FromString(html, pageURL string) (*Document, error) {
	return New(strings.NewReader(html), pageURL)
}

// applyBaseElement honours the first <base href>, like a browser.
func (d *Document) applyBaseElement() {
	raw, ok := d.doc.Find("base[href]").First().Attr("href")
	if !ok {
		return
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return
	}
	if d.base != nil {
		d.base = d.base.ResolveReference(ref)
	} else if ref.IsAbs() {
		d.base = ref
	}
}

// SetReadyState moves the document between loading states.
func (d *Document) SetReadyState(state dom.ReadyState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
}

// OnClick registers fn for clicks on elements matching selector.
func (d *Document) OnClick(selector string, fn ClickHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler{selector: selector, fn: fn})
}

// Clicks returns the activations recorded so far, oldest first.
func (d *Document) Clicks() []Click {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Click(nil), d.clicks...)
}

// Mutate runs fn with the underlying document locked.
func (d *Document) Mutate(fn func(doc *goquery.Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.doc)
}

func (d *Document) ReadyState() (dom.ReadyState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, nil
}

func (d *Document) ElementByID(id string) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel := d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
	if sel.Length() == 0 {
		return nil, dom.ErrNotFound
	}
	return &element{d: d, sel: sel, tag: goquery.NodeName(sel)}, nil
}

func (d *Document) ElementsByTag(tag string) ([]dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tag = strings.ToLower(tag)
	var out []dom.Element
	d.doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{d: d, sel: s, tag: tag})
	})
	return out, nil
}

func (d *Document) Links() ([]dom.Anchor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []dom.Anchor
	d.doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		out = append(out, &anchor{d: d, sel: s})
	})
	return out, nil
}

func (d *Document) URL() (string, error) {
	return d.pageURL, nil
}

func (d *Document) OuterHTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return goquery.OuterHtml(d.doc.Find("html").First())
}

// Close is a no-op; static documents hold no external resources.
func (d *Document) Close() error {
	return nil
}

type element struct {
	d   *Document
	sel *goquery.Selection
	tag string
}

func (e *element) TagName() string { return e.tag }

func (e *element) TextContent() (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.sel.Text(), nil
}

func (e *element) Click() error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()

	if _, disabled := e.sel.Attr("disabled"); disabled {
		return fmt.Errorf("%s is disabled: %w", e.tag, dom.ErrNotInteractable)
	}

	id, _ := e.sel.Attr("id")
	e.d.clicks = append(e.d.clicks, Click{Tag: e.tag, ID: id, Text: innerText(e.sel)})

	for _, h := range e.d.handlers {
		if !e.sel.Is(h.selector) {
			continue
		}
		if err := h.fn(e.sel); err != nil {
			return fmt.Errorf("click handler %s: %w", h.selector, err)
		}
	}
	return nil
}

type anchor struct {
	d   *Document
	sel *goquery.Selection
}

func (a *anchor) Link() (models.LinkRecord, error) {
	a.d.mu.Lock()
	defer a.d.mu.Unlock()

	raw, _ := a.sel.Attr("href")
	href := a.d.resolve(raw)
	return models.LinkRecord{
		Text:     innerText(a.sel),
		Href:     href,
		Protocol: links.Protocol(href),
	}, nil
}

// resolve mirrors HTMLAnchorElement.href: the resolved absolute URL, or the raw
// attribute when it cannot be resolved.
func (d *Document) resolve(raw string) string {
	trimmed := strings.TrimSpace(raw)
	ref, err := url.Parse(trimmed)
	if err != nil {
		return raw
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if d.base == nil {
		return raw
	}
	return d.base.ResolveReference(ref).String()
}

// innerText approximates the rendered text of a static element: script, style
// and template content is skipped and whitespace is collapsed.
func innerText(s *goquery.Selection) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "template", "noscript":
				return
			case "br":
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

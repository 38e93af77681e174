// Package pwpage implements dom.Page over a Chromium page driven by playwright-go.
package pwpage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/playwright-community/playwright-go"
)

const (
	jsReadyState = `() => document.readyState`
	jsByID       = `(id) => document.getElementById(id)`
	jsTagName    = `(el) => el.localName`
	jsClick      = `(el) => { if (el.disabled === true) return false; el.click(); return true; }`
	jsLink       = `(el) => ({ text: el.innerText, href: el.href, protocol: el.protocol })`
)

// Options configure the launched browser.
type Options struct {
	Headless bool
}

// Page is a live Chromium page. Navigation is committed in Open but loading is not awaited.
type Page struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	logger  *slog.Logger
}

// Open starts the playwright driver, launches Chromium and navigates to rawURL.
func Open(ctx context.Context, rawURL string, opts Options, logger *slog.Logger) (*Page, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	p := &Page{pw: pw, logger: logger}

	p.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	p.page, err = p.browser.NewPage()
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if _, err := p.page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
	}); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to open %s: %w", rawURL, err)
	}

	// Close the browser when the scan context ends so pending work unblocks.
	go func() {
		<-ctx.Done()
		if p.browser != nil && p.browser.IsConnected() {
			_ = p.browser.Close()
		}
	}()

	logger.Debug("opened playwright page", "url", rawURL)
	return p, nil
}

func (p *Page) ReadyState() (dom.ReadyState, error) {
	v, err := p.page.Evaluate(jsReadyState)
	if err != nil {
		return "", fmt.Errorf("read readyState: %w", err)
	}
	state, _ := v.(string)
	return dom.ReadyState(state), nil
}

func (p *Page) ElementByID(id string) (dom.Element, error) {
	h, err := p.page.EvaluateHandle(jsByID, id)
	if err != nil {
		return nil, fmt.Errorf("look up #%s: %w", id, err)
	}
	el := h.AsElement()
	if el == nil {
		_ = h.Dispose()
		return nil, dom.ErrNotFound
	}
	return wrap(el, ""), nil
}

func (p *Page) ElementsByTag(tag string) ([]dom.Element, error) {
	handles, err := p.page.QuerySelectorAll(tag)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tag, err)
	}
	out := make([]dom.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, wrap(h, tag))
	}
	return out, nil
}

func (p *Page) Links() ([]dom.Anchor, error) {
	handles, err := p.page.QuerySelectorAll("a[href], area[href]")
	if err != nil {
		return nil, fmt.Errorf("collect links: %w", err)
	}
	out := make([]dom.Anchor, 0, len(handles))
	for _, h := range handles {
		out = append(out, &anchor{h: h})
	}
	return out, nil
}

func (p *Page) URL() (string, error) {
	return p.page.URL(), nil
}

func (p *Page) OuterHTML() (string, error) {
	return p.page.Content()
}

// Close shuts down the browser and the playwright driver.
func (p *Page) Close() error {
	var errs []error
	if p.browser != nil && p.browser.IsConnected() {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if p.pw != nil {
		if err := p.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}

func wrap(h playwright.ElementHandle, tag string) dom.Element {
	if tag == "" {
		if v, err := h.Evaluate(jsTagName); err == nil {
			tag, _ = v.(string)
		}
	}
	return &element{h: h, tag: tag}
}

type element struct {
	h   playwright.ElementHandle
	tag string
}

func (e *element) TagName() string { return e.tag }

func (e *element) TextContent() (string, error) {
	return e.h.TextContent()
}

func (e *element) Click() error {
	v, err := e.h.Evaluate(jsClick)
	if err != nil {
		return err
	}
	if ok, _ := v.(bool); !ok {
		return fmt.Errorf("%s is disabled: %w", e.tag, dom.ErrNotInteractable)
	}
	return nil
}

type anchor struct {
	h playwright.ElementHandle
}

func (a *anchor) Link() (models.LinkRecord, error) {
	v, err := a.h.Evaluate(jsLink)
	if err != nil {
		return models.LinkRecord{}, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return models.LinkRecord{}, fmt.Errorf("unexpected link value %T", v)
	}
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return models.LinkRecord{Text: str("text"), Href: str("href"), Protocol: str("protocol")}, nil
}

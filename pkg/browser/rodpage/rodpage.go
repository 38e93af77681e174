// Package rodpage implements dom.Page over a Chrome tab driven by go-rod.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	jsReadyState = `() => document.readyState`
	jsByID       = `(id) => { const el = document.getElementById(id); return el ? [el] : []; }`
	jsLinks      = `() => Array.from(document.links)`
	jsText       = `() => this.textContent`
	jsClick      = `() => { if (this.disabled === true) return false; this.click(); return true; }`
	jsLink       = `() => ({ text: this.innerText, href: this.href, protocol: this.protocol })`
)

// Options configure the launched browser.
type Options struct {
	Headless bool
	// ControlURL connects to a running browser instead of launching one.
	ControlURL string
}

// Page is a live browser tab. Navigation starts in Open and is not awaited.
type Page struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	logger   *slog.Logger
}

// Open launches (or connects to) Chrome and starts navigating a new tab to rawURL.
func Open(ctx context.Context, rawURL string, opts Options, logger *slog.Logger) (*Page, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Page{logger: logger}

	controlURL := opts.ControlURL
	if controlURL == "" {
		p.launcher = launcher.New().
			Headless(opts.Headless).
			NoSandbox(true).
			Set("disable-dev-shm-usage").
			Set("disable-gpu")

		u, err := p.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	p.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := p.browser.Connect(); err != nil {
		p.cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := p.browser.Page(proto.TargetCreateTarget{URL: rawURL})
	if err != nil {
		_ = p.browser.Close()
		p.cleanup()
		return nil, fmt.Errorf("failed to open %s: %w", rawURL, err)
	}
	p.page = page
	logger.Debug("opened rod page", "url", rawURL, "control_url", controlURL)
	return p, nil
}

func (p *Page) cleanup() {
	if p.launcher != nil {
		p.launcher.Cleanup()
	}
}

func (p *Page) ReadyState() (dom.ReadyState, error) {
	res, err := p.page.Eval(jsReadyState)
	if err != nil {
		return "", fmt.Errorf("read readyState: %w", err)
	}
	return dom.ReadyState(res.Value.Str()), nil
}

func (p *Page) ElementByID(id string) (dom.Element, error) {
	els, err := p.page.ElementsByJS(rod.Eval(jsByID, id))
	if err != nil {
		return nil, fmt.Errorf("look up #%s: %w", id, err)
	}
	if els.Empty() {
		return nil, dom.ErrNotFound
	}
	return wrap(els.First(), ""), nil
}

func (p *Page) ElementsByTag(tag string) ([]dom.Element, error) {
	els, err := p.page.Elements(tag)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tag, err)
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, wrap(el, tag))
	}
	return out, nil
}

func (p *Page) Links() ([]dom.Anchor, error) {
	els, err := p.page.ElementsByJS(rod.Eval(jsLinks))
	if err != nil {
		return nil, fmt.Errorf("collect links: %w", err)
	}
	out := make([]dom.Anchor, 0, len(els))
	for _, el := range els {
		out = append(out, &anchor{el: el})
	}
	return out, nil
}

func (p *Page) URL() (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", fmt.Errorf("read page info: %w", err)
	}
	return info.URL, nil
}

func (p *Page) OuterHTML() (string, error) {
	return p.page.HTML()
}

// Close closes the tab and the browser, and removes a launched browser's profile.
func (p *Page) Close() error {
	var errs []error
	if p.page != nil {
		if err := p.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	p.cleanup()
	return errors.Join(errs...)
}

// wrap describes the node for its tag name unless the caller already knows it.
func wrap(el *rod.Element, tag string) dom.Element {
	if tag == "" {
		if desc, err := el.Describe(0, false); err == nil {
			tag = desc.LocalName
		}
	}
	return &element{el: el, tag: tag}
}

type element struct {
	el  *rod.Element
	tag string
}

func (e *element) TagName() string { return e.tag }

func (e *element) TextContent() (string, error) {
	res, err := e.el.Eval(jsText)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *element) Click() error {
	res, err := e.el.Eval(jsClick)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%s is disabled: %w", e.tag, dom.ErrNotInteractable)
	}
	return nil
}

type anchor struct {
	el *rod.Element
}

func (a *anchor) Link() (models.LinkRecord, error) {
	res, err := a.el.Eval(jsLink)
	if err != nil {
		return models.LinkRecord{}, err
	}
	v := res.Value
	return models.LinkRecord{
		Text:     v.Get("text").Str(),
		Href:     v.Get("href").Str(),
		Protocol: v.Get("protocol").Str(),
	}, nil
}

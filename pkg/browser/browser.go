// Package browser opens a page with the configured driver.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/browser/pwpage"
	"github.com/dtnitsch/consent-audit/pkg/browser/rodpage"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/dtnitsch/consent-audit/pkg/fetcher"
)

// Opener starts loading a URL and returns the page without waiting for it to finish.
type Opener interface {
	Open(ctx context.Context, rawURL string) (dom.Page, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, rawURL string) (dom.Page, error)

func (f OpenerFunc) Open(ctx context.Context, rawURL string) (dom.Page, error) {
	return f(ctx, rawURL)
}

// NewOpener returns the opener for cfg.Driver. The static driver fetches with f.
func NewOpener(cfg *models.Config, f *fetcher.Fetcher, logger *slog.Logger) (Opener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case models.DriverStatic, "":
		if f == nil {
			f = fetcher.NewFetcher(nil, logger)
		}
		return OpenerFunc(func(ctx context.Context, rawURL string) (dom.Page, error) {
			page, err := f.GetDocument(ctx, rawURL)
			if err != nil {
				return nil, err
			}
			return page, nil
		}), nil
	case models.DriverRod:
		opts := rodpage.Options{Headless: cfg.Headless}
		return OpenerFunc(func(ctx context.Context, rawURL string) (dom.Page, error) {
			page, err := rodpage.Open(ctx, rawURL, opts, logger)
			if err != nil {
				return nil, err
			}
			return page, nil
		}), nil
	case models.DriverPlaywright:
		opts := pwpage.Options{Headless: cfg.Headless}
		return OpenerFunc(func(ctx context.Context, rawURL string) (dom.Page, error) {
			page, err := pwpage.Open(ctx, rawURL, opts, logger)
			if err != nil {
				return nil, err
			}
			return page, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

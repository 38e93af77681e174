package links

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/dtnitsch/consent-audit/internal/common"
	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/browser"
	"github.com/dtnitsch/consent-audit/pkg/caching"
	"github.com/dtnitsch/consent-audit/pkg/fetcher"
	linkspkg "github.com/dtnitsch/consent-audit/pkg/links"
	"github.com/dtnitsch/consent-audit/pkg/readiness"
	"github.com/urfave/cli/v2"
)

// LinksAction prints a page's hyperlink collection without running any consent units.
func LinksAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if c.NArg() != 1 {
		return cli.Exit("usage: consent-audit links <url>", 1)
	}
	urls, _ := common.SanitizeAndValidateURLs([]string{c.Args().First()})
	if len(urls) == 0 {
		return cli.Exit(fmt.Sprintf("invalid URL: %s", c.Args().First()), 1)
	}

	var cache *caching.Cache
	if cfg.CacheDir != "" {
		if cache, err = caching.NewCache(cfg.CacheDir, cfg.CacheTTL); err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}
	opener, err := browser.NewOpener(cfg, fetcher.NewFetcher(cache, logger), logger)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	page, err := opener.Open(ctx, urls[0])
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open page: %v", err), 2)
	}
	defer page.Close()

	wctx := ctx
	if cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, cfg.MaxWait)
		defer cancel()
	}
	if err := readiness.NewGate(cfg.RetryInterval, logger).Wait(wctx, page); err != nil {
		logger.Warn("page never finished loading, extracting anyway", "error", err)
	}

	records, err := linkspkg.Extract(page)
	if err != nil {
		logger.Warn("some links could not be read", "error", err)
	}
	records = filterProtocols(records, common.SplitList(c.String("protocol")))
	if records == nil {
		records = []models.LinkRecord{}
	}
	logger.Info("links extracted", "url", urls[0], "count", len(records))

	return common.PrintOutput(c.App.Writer, records, c.String("format"))
}

// filterProtocols keeps records whose protocol is listed, with or without the trailing colon.
func filterProtocols(records []models.LinkRecord, protocols []string) []models.LinkRecord {
	if len(protocols) == 0 {
		return records
	}
	want := make(map[string]bool, len(protocols))
	for _, p := range protocols {
		want[strings.ToLower(strings.TrimSuffix(p, ":"))+":"] = true
	}
	var out []models.LinkRecord
	for _, r := range records {
		if want[r.Protocol] {
			out = append(out, r)
		}
	}
	return out
}

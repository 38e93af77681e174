package audit

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/dtnitsch/consent-audit/internal/common"
	"github.com/dtnitsch/consent-audit/models"
	auditpkg "github.com/dtnitsch/consent-audit/pkg/audit"
	"github.com/dtnitsch/consent-audit/pkg/browser"
	"github.com/dtnitsch/consent-audit/pkg/caching"
	"github.com/dtnitsch/consent-audit/pkg/db"
	"github.com/dtnitsch/consent-audit/pkg/fetcher"
	"github.com/dtnitsch/consent-audit/pkg/injection"
	"github.com/dtnitsch/consent-audit/pkg/mapreduce"
	"github.com/dtnitsch/consent-audit/pkg/storage"
	"github.com/urfave/cli/v2"
)

func AuditAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := injection.Validate(cfg.Injections); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	rawURLs := append([]string(nil), c.Args().Slice()...)
	if c.IsSet("urls") {
		rawURLs = append(rawURLs, common.SplitList(c.String("urls"))...)
	}
	if len(rawURLs) == 0 {
		return cli.Exit("no URLs provided\n\nUsage:\n  consent-audit audit https://example.com\n  consent-audit audit --urls \"https://a.example,https://b.example\"", 1)
	}

	urls, invalid := common.SanitizeAndValidateURLs(rawURLs)
	for _, u := range invalid {
		logger.Warn("skipping invalid URL", "url", u)
	}
	if len(urls) == 0 {
		return cli.Exit("no valid URLs to audit", 1)
	}

	var cache *caching.Cache
	if cfg.CacheDir != "" && cfg.Driver == models.DriverStatic {
		cache, err = caching.NewCache(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}

	opener, err := browser.NewOpener(cfg, fetcher.NewFetcher(cache, logger), logger)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	var database *db.DB
	if !c.Bool("no-db") {
		database, err = db.Open(cfg.DBPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open database: %v", err), 2)
		}
		defer database.Close()
	}

	var store *storage.Storage
	if cfg.OutputDir != "" {
		store, err = storage.New(cfg.OutputDir)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	auditor := auditpkg.New(cfg, opener, logger)
	results := auditor.AuditAll(ctx, urls, c.Int("workers"))

	scans := make([]*models.Scan, 0, len(results))
	var hostCounts []map[string]int
	for _, r := range results {
		if r.Scan == nil {
			continue
		}
		scans = append(scans, r.Scan)
		hostCounts = append(hostCounts, mapreduce.Map(r.Scan.Links, hostOf(r.URL)))

		if database != nil {
			if err := database.SaveScan(r.Scan); err != nil {
				logger.Error("failed to save scan", "scan_id", r.Scan.ScanID, "error", err)
			}
		}
		if store != nil {
			path, err := store.SaveScan(r.Scan, storage.Format(c.String("format")))
			if err != nil {
				logger.Error("failed to write report", "scan_id", r.Scan.ScanID, "error", err)
				continue
			}
			logger.Info("report written", "scan_id", r.Scan.ScanID, "path", path)
		}
	}

	if top := mapreduce.TopHosts(mapreduce.Reduce(hostCounts), c.Int("top-hosts")); len(top) > 0 {
		logger.Info("most linked external hosts", "hosts", mapreduce.Format(top))
	}

	if err := common.PrintOutput(c.App.Writer, scans, c.String("format")); err != nil {
		return err
	}

	for _, r := range results {
		if r.Err != nil && auditpkg.IsInterrupted(r.Err) {
			return cli.Exit("audit interrupted", 130)
		}
	}
	if failed := auditpkg.Failed(results); failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d audits failed", failed, len(results)), 1)
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// UnitsAction lists the injectable unit names.
func UnitsAction(c *cli.Context) error {
	w := c.App.Writer
	for _, name := range injection.Names() {
		marker := " "
		for _, d := range models.DefaultInjections {
			if d == name {
				marker = "*"
			}
		}
		fmt.Fprintf(w, "%s %s\n", marker, name)
	}
	fmt.Fprintf(w, "\n* default audit sequence: %s\n", strings.Join(models.DefaultInjections, ", "))
	fmt.Fprintf(w, "Prefix a name with %q to run it without capturing its result.\n", injection.NoReturnPrefix)
	return nil
}

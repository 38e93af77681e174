// Package audit drives one consent audit per page: open the page, inject the
// configured units after a fixed delay, let the page settle, then harvest links
// and metadata.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/browser"
	"github.com/dtnitsch/consent-audit/pkg/detector"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/dtnitsch/consent-audit/pkg/injection"
	"github.com/dtnitsch/consent-audit/pkg/links"
	"github.com/dtnitsch/consent-audit/pkg/pagemeta"
	"github.com/google/uuid"
)

type Auditor struct {
	cfg    *models.Config
	opener browser.Opener
	meta   *pagemeta.Collector
	logger *slog.Logger
	now    func() time.Time
}

// New returns an auditor. cfg must already be validated.
func New(cfg *models.Config, opener browser.Opener, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		cfg:    cfg,
		opener: opener,
		meta:   pagemeta.NewCollector(cfg.DetectLanguage),
		logger: logger,
		now:    time.Now,
	}
}

// Audit scans one page. The returned scan is always non-nil once the unit names
// validate; it records the failure in Error when err is not nil.
// Deferred retries scheduled during the scan are dropped when Audit returns.
func (a *Auditor) Audit(ctx context.Context, rawURL string) (*models.Scan, error) {
	if err := injection.Validate(a.cfg.Injections); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	scan := &models.Scan{
		ScanID:    uuid.NewString(),
		URL:       rawURL,
		Driver:    a.cfg.Driver,
		StartedAt: a.now(),
	}
	logger := a.logger.With("scan_id", scan.ScanID, "url", rawURL)

	err = a.run(ctx, scan, u.Hostname(), logger)
	scan.FinishedAt = a.now()
	if err != nil {
		scan.Error = err.Error()
		logger.Error("audit failed", "error", err)
		return scan, err
	}
	logger.Info("audit finished", "duration", scan.Duration(), "links", len(scan.Links),
		"results", len(scan.Injections))
	return scan, nil
}

func (a *Auditor) run(ctx context.Context, scan *models.Scan, host string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	page, err := a.opener.Open(ctx, scan.URL)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Warn("failed to close page", "error", cerr)
		}
	}()

	if err := sleep(ctx, a.cfg.InjectAfter); err != nil {
		return err
	}

	profile := a.profileFor(page, scan.URL, host, logger)
	session := injection.NewSession(page, profile, injection.Options{
		RetryInterval:  a.cfg.RetryInterval,
		GateHeuristics: a.cfg.GateHeuristics,
		MaxWait:        a.cfg.MaxWait,
		Meta:           a.meta,
	}, logger)

	scan.Injections, err = session.Run(ctx, a.cfg.Injections)
	if err != nil {
		return err
	}

	if err := sleep(ctx, a.cfg.Settle); err != nil {
		return err
	}

	wctx := ctx
	if a.cfg.MaxWait > 0 {
		var wcancel context.CancelFunc
		wctx, wcancel = context.WithTimeout(ctx, a.cfg.MaxWait)
		defer wcancel()
	}
	if err := session.Gate().Wait(wctx, page); err != nil {
		logger.Warn("page never finished loading, harvesting anyway", "error", err)
	}
	if n := session.Gate().Pending(); n > 0 {
		logger.Info("dropping deferred retries", "pending", n)
	}

	var linkErr, metaErr error
	session.Do(func(doc dom.Document) {
		scan.Links, linkErr = links.Extract(doc)
		scan.Meta, metaErr = a.meta.Collect(doc)
	})
	if linkErr != nil {
		logger.Warn("some links could not be read", "error", linkErr, "links", len(scan.Links))
	}
	if metaErr != nil {
		logger.Warn("failed to collect page metadata", "error", metaErr)
	}
	if scan.Links == nil {
		scan.Links = []models.LinkRecord{}
	}
	return nil
}

// profileFor returns the configured profile for host. With AutoProfile set and no
// configured profile, the identifiers of a recognised consent platform are used.
func (a *Auditor) profileFor(page dom.Document, rawURL, host string, logger *slog.Logger) models.SiteProfile {
	profile, configured := a.cfg.LookupProfile(host)
	if configured || !a.cfg.AutoProfile {
		return profile
	}

	html, err := page.OuterHTML()
	if err != nil {
		logger.Debug("cannot snapshot page for platform detection", "error", err)
		return profile
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return profile
	}

	signals := detector.Analyze(rawURL, doc)
	p := signals.Platform
	if p == nil || p.PromptID == "" {
		return profile
	}
	profile.PromptID = p.PromptID
	profile.AcceptID = p.AcceptID
	profile.RejectID = p.RejectID
	logger.Info("using consent platform identifiers", "platform", p.Name, "confidence", signals.Confidence)
	return profile
}

// Result is the outcome of one URL in a batch.
type Result struct {
	URL  string
	Scan *models.Scan
	Err  error
}

// AuditAll scans urls with a fixed pool of workers, one page per worker at a time.
// Results come back in input order.
func (a *Auditor) AuditAll(ctx context.Context, urls []string, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	a.logger.Info("starting audit batch", "url_count", len(urls), "workers", workers)

	type job struct {
		idx int
		url string
	}
	jobs := make(chan job, len(urls))
	results := make([]Result, len(urls))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				scan, err := a.Audit(ctx, j.url)
				results[j.idx] = Result{URL: j.url, Scan: scan, Err: err}
			}
		}()
	}
	for i, u := range urls {
		jobs <- job{idx: i, url: u}
	}
	close(jobs)
	wg.Wait()

	a.logger.Info("all audit workers finished")
	return results
}

// Failed counts batch results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("audit interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

// IsInterrupted reports whether err came from a cancelled or expired context.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

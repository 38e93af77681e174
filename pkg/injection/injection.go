// Package injection runs named units against a page the way an audit crawler
// injects scripts: one at a time, in order, capturing the value of every unit
// whose name does not carry the no-return prefix.
package injection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/classifier"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/dtnitsch/consent-audit/pkg/links"
	"github.com/dtnitsch/consent-audit/pkg/pagemeta"
	"github.com/dtnitsch/consent-audit/pkg/readiness"
	"github.com/dtnitsch/consent-audit/pkg/trigger"
)

// NoReturnPrefix marks a unit whose value is ignored.
const NoReturnPrefix = "load_"

// Unit is one injectable piece of page logic.
type Unit func(ctx context.Context, s *Session) (any, error)

var units = map[string]Unit{
	"consent_prompt_exists": func(ctx context.Context, s *Session) (any, error) {
		return s.trigger.ElementExistsByID(ctx, s.doc, s.profile.PromptID), nil
	},
	"accept_consent_by_id": func(ctx context.Context, s *Session) (any, error) {
		return s.trigger.TriggerByID(ctx, s.doc, s.profile.AcceptID, models.RoleAccept), nil
	},
	"reject_consent_by_id": func(ctx context.Context, s *Session) (any, error) {
		return s.trigger.TriggerByID(ctx, s.doc, s.profile.RejectID, models.RoleReject), nil
	},
	"accept_consent": func(ctx context.Context, s *Session) (any, error) {
		return s.heuristic(ctx, s.profile.AcceptKeyword)
	},
	"reject_consent": func(ctx context.Context, s *Session) (any, error) {
		return s.heuristic(ctx, s.profile.RejectKeyword)
	},
	"links": func(_ context.Context, s *Session) (any, error) {
		return links.Extract(s.doc)
	},
	"page_meta": func(_ context.Context, s *Session) (any, error) {
		return s.opts.Meta.Collect(s.doc)
	},
}

// Names lists the registered unit names.
func Names() []string {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a name, with or without the no-return prefix.
// captured is false for no-return names.
func Lookup(name string) (unit Unit, captured bool, ok bool) {
	base, noReturn := strings.CutPrefix(name, NoReturnPrefix)
	unit, ok = units[base]
	return unit, !noReturn, ok
}

// Validate checks every name resolves to a unit.
func Validate(names []string) error {
	for _, name := range names {
		if _, _, ok := Lookup(name); !ok {
			return fmt.Errorf("unable to inject %s, does the unit exist?", name)
		}
	}
	return nil
}

// Options tune a Session.
type Options struct {
	RetryInterval time.Duration
	// GateHeuristics makes the keyword units wait for readiness, bounded by MaxWait.
	GateHeuristics bool
	MaxWait        time.Duration
	Meta           *pagemeta.Collector
}

// Session runs units against one page. Units and deferred retries never overlap.
type Session struct {
	mu      sync.Mutex
	doc     dom.Document
	profile models.SiteProfile
	gate    *readiness.Gate
	trigger *trigger.Trigger
	opts    Options
	logger  *slog.Logger
}

// NewSession prepares a session for doc with the site's profile.
func NewSession(doc dom.Document, profile models.SiteProfile, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Meta == nil {
		opts.Meta = pagemeta.NewCollector(false)
	}
	s := &Session{
		doc:     doc,
		profile: profile,
		opts:    opts,
		logger:  logger,
	}
	s.gate = readiness.NewGate(opts.RetryInterval, logger)
	s.gate.Locker = &s.mu
	s.trigger = trigger.New(s.gate, logger)
	return s
}

// Gate exposes the session's readiness gate.
func (s *Session) Gate() *readiness.Gate {
	return s.gate
}

// Do runs fn against the page without overlapping units or deferred retries.
func (s *Session) Do(fn func(doc dom.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Run validates names, then injects them in order. It returns the captured
// results of every unit without the no-return prefix.
func (s *Session) Run(ctx context.Context, names []string) ([]models.InjectionResult, error) {
	if err := Validate(names); err != nil {
		return nil, err
	}

	results := make([]models.InjectionResult, 0, len(names))
	for _, name := range names {
		res, captured, err := s.Inject(ctx, name)
		if err != nil {
			return results, err
		}
		if captured {
			results = append(results, res)
		}
	}
	return results, nil
}

// Inject runs a single unit. Failures inside the unit never escape: they are
// logged and the unit's value is still captured.
func (s *Session) Inject(ctx context.Context, name string) (models.InjectionResult, bool, error) {
	unit, captured, ok := Lookup(name)
	if !ok {
		return models.InjectionResult{}, false, fmt.Errorf("unable to inject %s, does the unit exist?", name)
	}

	s.mu.Lock()
	value, err := s.call(ctx, unit)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("injected unit reported an error", "unit", name, "error", err)
	}
	if !captured {
		s.logger.Debug("injected no-return unit", "unit", name)
		return models.InjectionResult{}, false, nil
	}

	encoded, mErr := json.Marshal(value)
	if mErr != nil {
		encoded, _ = json.Marshal(fmt.Sprintf("unencodable result: %v", mErr))
	}
	s.logger.Info("injected unit", "unit", name, "result", string(encoded))
	return models.InjectionResult{ScriptName: name, Result: string(encoded)}, true, nil
}

func (s *Session) call(ctx context.Context, unit Unit) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("unit panicked: %v", r)
		}
	}()
	return unit(ctx, s)
}

func (s *Session) heuristic(ctx context.Context, keyword string) (models.Result, error) {
	if s.opts.GateHeuristics {
		wctx := ctx
		if s.opts.MaxWait > 0 {
			var cancel context.CancelFunc
			wctx, cancel = context.WithTimeout(ctx, s.opts.MaxWait)
			defer cancel()
		}
		if err := s.gate.Wait(wctx, s.doc); err != nil {
			return models.Result{Outcome: models.OutcomeNoMatch, Err: err}, err
		}
	}

	report := classifier.FindAndActivate(s.doc, keyword)
	res := report.Result()
	s.logger.Debug("keyword pass", "keyword", keyword, "examined", report.Examined,
		"matched", len(report.Matched), "activated", report.Activated)
	return res, res.Err
}

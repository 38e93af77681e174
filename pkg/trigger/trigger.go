// Package trigger activates or checks consent elements by a known identifier.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/dtnitsch/consent-audit/pkg/readiness"
)

// Trigger runs identifier-based operations behind a readiness gate.
type Trigger struct {
	gate   *readiness.Gate
	logger *slog.Logger
}

// New creates a Trigger. A nil gate gets a default one.
func New(gate *readiness.Gate, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = readiness.NewGate(readiness.DefaultInterval, logger)
	}
	return &Trigger{gate: gate, logger: logger}
}

// TriggerByID clicks the element carrying id.
// When the page is not ready the same call is retried after the gate interval
// and OutcomePending is returned; the retry's result is discarded.
func (t *Trigger) TriggerByID(ctx context.Context, doc dom.Document, id string, role models.Role) models.Result {
	if !readiness.IsReady(doc) {
		t.gate.Defer(ctx, func() {
			res := t.TriggerByID(ctx, doc, id, role)
			t.logger.Debug("deferred trigger ran", "id", id, "role", role, "outcome", res.Outcome)
		})
		return models.Result{Outcome: models.OutcomePending}
	}

	el, res := t.lookup(doc, id)
	if el == nil {
		return res
	}

	if err := click(el); err != nil {
		return models.Result{Outcome: models.OutcomeActivationError, Err: fmt.Errorf("%s %q: %w", role, id, err)}
	}
	return models.Result{Outcome: models.OutcomeActivated, Activated: 1}
}

// ElementExistsByID reports whether id resolves to an element. It never clicks.
func (t *Trigger) ElementExistsByID(ctx context.Context, doc dom.Document, id string) models.Result {
	if !readiness.IsReady(doc) {
		t.gate.Defer(ctx, func() {
			res := t.ElementExistsByID(ctx, doc, id)
			t.logger.Debug("deferred presence check ran", "id", id, "outcome", res.Outcome)
		})
		return models.Result{Outcome: models.OutcomePending}
	}

	if el, res := t.lookup(doc, id); el == nil {
		return res
	}
	return models.Result{Outcome: models.OutcomeFound}
}

func (t *Trigger) lookup(doc dom.Document, id string) (dom.Element, models.Result) {
	if id == "" {
		return nil, models.Result{Outcome: models.OutcomeNotFound, Err: dom.ErrNotFound}
	}
	el, err := doc.ElementByID(id)
	if err != nil || el == nil {
		if err == nil || !errors.Is(err, dom.ErrNotFound) {
			t.logger.Debug("identifier lookup failed", "id", id, "error", err)
		}
		return nil, models.Result{Outcome: models.OutcomeNotFound, Err: fmt.Errorf("id %q: %w", id, dom.ErrNotFound)}
	}
	return el, models.Result{}
}

// click converts a panicking backend into an error.
func click(el dom.Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("click panicked: %v", r)
		}
	}()
	return el.Click()
}

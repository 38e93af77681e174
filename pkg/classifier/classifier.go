// Package classifier finds short, clickable-looking elements whose text contains
// a keyword and clicks every one of them.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/dom"
)

// Kinds are the element kinds scanned, in scan order.
var Kinds = []string{"button", "a", "span", "div"}

// MaxTokens is the exclusive upper bound on space-separated tokens for a label.
const MaxTokens = 5

// Candidate is one element examined during a pass.
type Candidate struct {
	Kind    string
	Text    string
	Element dom.Element
}

// Report describes a single pass.
type Report struct {
	Keyword   string
	Examined  int
	Matched   []Candidate
	Activated int
	Errors    []error
}

// Result folds the report into the shared outcome type.
func (r *Report) Result() models.Result {
	switch {
	case r.Activated > 0:
		return models.Result{Outcome: models.OutcomeActivated, Activated: r.Activated, Err: errors.Join(r.Errors...)}
	case len(r.Matched) > 0:
		return models.Result{Outcome: models.OutcomeActivationError, Err: errors.Join(r.Errors...)}
	default:
		return models.Result{Outcome: models.OutcomeNoMatch, Err: errors.Join(r.Errors...)}
	}
}

// IsLabel reports whether text is short enough to be a control label.
// Tokens are split on single spaces, so runs of spaces yield empty tokens.
func IsLabel(text string) bool {
	return len(strings.Split(text, " ")) < MaxTokens
}

// Matches applies both predicates: short label and case-folded substring match.
func Matches(text, keyword string) bool {
	return IsLabel(text) && strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
}

// FindAndActivate clicks every element of every kind in Kinds whose text matches keyword.
// It does not wait for the page to be ready.
func FindAndActivate(doc dom.Document, keyword string) *Report {
	report := &Report{Keyword: keyword}

	for _, kind := range Kinds {
		elements, err := doc.ElementsByTag(kind)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("query %s: %w", kind, err))
			continue
		}

		for _, el := range elements {
			report.Examined++
			text, err := el.TextContent()
			if err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("read %s text: %w", kind, err))
				continue
			}
			if !Matches(text, keyword) {
				continue
			}

			report.Matched = append(report.Matched, Candidate{Kind: kind, Text: text, Element: el})
			if err := activate(el); err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("click %s %q: %w", kind, text, err))
				continue
			}
			report.Activated++
		}
	}

	return report
}

func activate(el dom.Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("click panicked: %v", r)
		}
	}()
	return el.Click()
}

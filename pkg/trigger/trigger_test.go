package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dtnitsch/consent-audit/models"
	"github.com/dtnitsch/consent-audit/pkg/dom"
	"github.com/dtnitsch/consent-audit/pkg/htmldoc"
	"github.com/dtnitsch/consent-audit/pkg/readiness"
)

const demoPage = `
<div id="consent_prompt">
  <p>This site uses cookies.</p>
  <button id="accept_consent">Accept</button>
  <button id="reject_consent" disabled>Reject</button>
</div>`

func setup(t *testing.T, html string) (*Trigger, *htmldoc.Document) {
	t.Helper()
	doc, err := htmldoc.FromString(html, "https://demo.test/")
	if err != nil {
		t.Fatalf("failed to parse page: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(readiness.NewGate(5*time.Millisecond, logger), logger), doc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestElementExistsByID(t *testing.T) {
	tr, doc := setup(t, demoPage)
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		want models.Outcome
	}{
		{"present", "consent_prompt", models.OutcomeFound},
		{"absent", "cookie_wall", models.OutcomeNotFound},
		{"empty id", "", models.OutcomeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tr.ElementExistsByID(ctx, doc, tt.id)
			if res.Outcome != tt.want {
				t.Errorf("ElementExistsByID(%q) = %s, want %s", tt.id, res.Outcome, tt.want)
			}
			if res.OK() != (tt.want == models.OutcomeFound) {
				t.Errorf("OK() = %v", res.OK())
			}
		})
	}
	if len(doc.Clicks()) != 0 {
		t.Errorf("presence check clicked %d elements", len(doc.Clicks()))
	}
}

func TestElementExistsByID_NoPrompt(t *testing.T) {
	tr, doc := setup(t, `<main><h1>No banner here</h1></main>`)

	res := tr.ElementExistsByID(context.Background(), doc, "consent_prompt")
	if res.OK() {
		t.Errorf("ElementExistsByID() = true on a page without the prompt")
	}
}

func TestTriggerByID(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		role     models.Role
		want     models.Outcome
		wantErr  error
		wantBool bool
	}{
		{"click succeeds", "accept_consent", models.RoleAccept, models.OutcomeActivated, nil, true},
		{"missing element", "nope", models.RoleReject, models.OutcomeNotFound, dom.ErrNotFound, false},
		{"activation fails", "reject_consent", models.RoleReject, models.OutcomeActivationError, dom.ErrNotInteractable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, doc := setup(t, demoPage)
			res := tr.TriggerByID(context.Background(), doc, tt.id, tt.role)
			if res.Outcome != tt.want {
				t.Errorf("TriggerByID() outcome = %s, want %s", res.Outcome, tt.want)
			}
			if res.OK() != tt.wantBool {
				t.Errorf("TriggerByID() OK = %v, want %v", res.OK(), tt.wantBool)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("TriggerByID() err = %v, want %v", res.Err, tt.wantErr)
			}
		})
	}
}

type panickyElement struct{}

func (panickyElement) TagName() string              { return "button" }
func (panickyElement) TextContent() (string, error) { return "Accept", nil }
func (panickyElement) Click() error                 { panic("detached node") }

type panickyDoc struct{ *htmldoc.Document }

func (panickyDoc) ElementByID(string) (dom.Element, error) { return panickyElement{}, nil }

func TestTriggerByID_RecoversPanic(t *testing.T) {
	tr, doc := setup(t, demoPage)

	res := tr.TriggerByID(context.Background(), panickyDoc{doc}, "x", models.RoleAccept)
	if res.Outcome != models.OutcomeActivationError {
		t.Errorf("outcome = %s, want activation_error", res.Outcome)
	}
}

func TestTriggerByID_DefersUntilReady(t *testing.T) {
	tr, doc := setup(t, demoPage)
	doc.SetReadyState(dom.StateLoading)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := tr.TriggerByID(ctx, doc, "accept_consent", models.RoleAccept)
	if !res.Pending() || res.Value() != nil {
		t.Fatalf("TriggerByID() on loading page = %s, want pending", res.Outcome)
	}

	// Several retry intervals pass while the page is still loading.
	time.Sleep(30 * time.Millisecond)
	if n := len(doc.Clicks()); n != 0 {
		t.Fatalf("clicked %d elements before the page was ready", n)
	}

	doc.SetReadyState(dom.StateComplete)
	waitFor(t, func() bool { return len(doc.Clicks()) == 1 })
	waitFor(t, func() bool { return tr.gate.Pending() == 0 })

	if got := doc.Clicks()[0].ID; got != "accept_consent" {
		t.Errorf("deferred retry clicked %q", got)
	}
}

func TestTriggerByID_RetryStopsOnCancel(t *testing.T) {
	tr, doc := setup(t, demoPage)
	doc.SetReadyState(dom.StateLoading)
	ctx, cancel := context.WithCancel(context.Background())

	tr.TriggerByID(ctx, doc, "accept_consent", models.RoleAccept)
	cancel()
	waitFor(t, func() bool { return tr.gate.Pending() == 0 })

	doc.SetReadyState(dom.StateComplete)
	time.Sleep(20 * time.Millisecond)
	if n := len(doc.Clicks()); n != 0 {
		t.Errorf("retry clicked after cancel: %d clicks", n)
	}
}

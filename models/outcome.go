package models

import "encoding/json"

// Role is the consent action a trigger performs.
type Role string

const (
	RoleAccept Role = "accept"
	RoleReject Role = "reject"
)

// Outcome classifies a single trigger, presence check or classifier pass.
type Outcome string

const (
	OutcomeActivated       Outcome = "activated"
	OutcomeFound           Outcome = "found"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeActivationError Outcome = "activation_error"
	OutcomeNoMatch         Outcome = "no_match"
	// OutcomePending means the page was not ready and a retry was scheduled.
	// No boolean is produced for the attempt.
	OutcomePending Outcome = "pending"
)

// Result is what page operations return internally. OK gives the boolean
// contract seen across the injection boundary.
type Result struct {
	Outcome   Outcome
	Activated int
	Err       error
}

// OK reports boolean success: an element was activated or found.
func (r Result) OK() bool {
	return r.Outcome == OutcomeActivated || r.Outcome == OutcomeFound
}

// Pending reports whether the operation was deferred until the page is ready.
func (r Result) Pending() bool {
	return r.Outcome == OutcomePending
}

// Value is the value captured by the injection protocol: a bool, or nil when pending.
func (r Result) Value() any {
	if r.Pending() {
		return nil
	}
	return r.OK()
}

// MarshalJSON encodes the result as its captured value.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

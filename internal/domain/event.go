package domain

import (
	"encoding/json"
	"time"
)

// TransitionKind tags a TransitionEvent.
type TransitionKind string

const (
	Entered TransitionKind = "entered"
	Updated TransitionKind = "updated"
	Exited  TransitionKind = "exited"
)

// ExitReason explains an Exited transition.
type ExitReason string

const (
	// ExitExpired: the stated end date passed and upstream no longer lists the alert.
	ExitExpired ExitReason = "expired"
	// ExitWithdrawn: upstream stopped listing the alert before its end date.
	ExitWithdrawn ExitReason = "withdrawn"
)

// TransitionEvent is the reconciliation output. Exactly one shape is valid per kind:
//
//	Entered: New set
//	Updated: Old and New set
//	Exited:  Old set, Reason set
type TransitionEvent struct {
	ID     string         `json:"id"`
	Kind   TransitionKind `json:"kind"`
	Key    string         `json:"identity_key"`
	Region string         `json:"region"`
	Old    *AlertRecord   `json:"old,omitempty"`
	New    *AlertRecord   `json:"new,omitempty"`
	Reason ExitReason     `json:"reason,omitempty"`
	At     time.Time      `json:"at"`
}

// Record returns the record the event is about: the new version for Entered
// and Updated, the last known version for Exited.
func (e TransitionEvent) Record() AlertRecord {
	if e.New != nil {
		return *e.New
	}
	if e.Old != nil {
		return *e.Old
	}
	return AlertRecord{}
}

// SerializeTransition encodes a transition for a sink.
func SerializeTransition(e TransitionEvent) ([]byte, error) {
	return json.Marshal(e)
}

/*
Package undo defines the single-step undo log records.

PURPOSE:
  Every mutating operation records one Entry immediately before applying
  its change: an opaque snapshot of the entity as it existed pre-mutation.
  At most one entry per entity is available at a time; recording a new one
  supersedes the prior. Consumed and superseded entries stay around for
  audit but are never replayed.

  The package is entity-type agnostic. Snapshot payloads are opaque bytes;
  the billing engine owns their encoding and the restore logic.

STALENESS:
  An entry stores the entity version it observed before the mutation. The
  mutation bumps the version by exactly one, so a replayable entry always
  satisfies current_version == recorded_version + 1. Anything else means
  the entity moved on through a path the log did not see, and replaying
  would corrupt later state - execute fails with ErrStale instead.

SEE ALSO:
  - billing/engine.go: Records entries and executes restores
  - store/sqlite: Persists entries in the same transaction as the mutation
*/
package undo

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an undo entry was already consumed,
	// superseded, or never existed.
	ErrNotFound = errors.New("undo entry not found")

	// ErrStale is returned when the entity has been mutated since the entry
	// was recorded and replaying the snapshot is no longer safe.
	ErrStale = errors.New("undo entry is stale")
)

// StaleError carries the version mismatch detail.
type StaleError struct {
	EntityType      string
	EntityID        string
	RecordedVersion int64
	CurrentVersion  int64
}

func (e *StaleError) Error() string {
	return "undo entry is stale: entity has been modified since it was recorded"
}

func (e *StaleError) Unwrap() error { return ErrStale }

// Entry is a stored pre-mutation snapshot.
type Entry struct {
	ID         string
	EntityType string
	EntityID   string

	// Action identifies the mutation this entry can reverse, e.g.
	// "status_change" or "allocation_update". Label() renders it for UI.
	Action string

	// Snapshot is the opaque pre-mutation state payload.
	Snapshot []byte

	// RecordedVersion is the entity version observed before the mutation.
	RecordedVersion int64

	PerformedBy string
	Consumed    bool
	Superseded  bool
	CreatedAt   time.Time
}

// Available reports whether the entry can still be executed.
func (e *Entry) Available() bool {
	return !e.Consumed && !e.Superseded
}

// Known action names recorded by the billing engine.
const (
	ActionStatusChange     = "status_change"
	ActionAllocationUpdate = "allocation_update"
	ActionSplit            = "split"
	ActionUnsplit          = "unsplit"
	ActionBillingFinalized = "billing_finalized"
)

var actionLabels = map[string]string{
	ActionStatusChange:     "status change",
	ActionAllocationUpdate: "cost code allocation update",
	ActionSplit:            "invoice split",
	ActionUnsplit:          "invoice unsplit",
	ActionBillingFinalized: "draw billing",
}

// Label returns a human-readable description of the action an entry would
// undo. Unknown actions fall back to the raw action name.
func (e *Entry) Label() string {
	if label, ok := actionLabels[e.Action]; ok {
		return label
	}
	return e.Action
}

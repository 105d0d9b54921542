package api

import (
	"context"
	"time"
)

// Engine is the high-level navigation and SLA enforcement API.
//
// All mutating operations are synchronous: they complete or fail within
// the underlying store round-trip, with no internal retry. Human-triggered
// and system-triggered transitions share the same entry point so there is
// a single audit trail regardless of trigger source.
type Engine interface {
	// RegisterSnapshot validates and stores an immutable snapshot.
	// Registering a snapshot ID that already exists fails: edits to a
	// workflow definition must produce a new snapshot.
	RegisterSnapshot(ctx context.Context, snap WorkflowSnapshot) error

	// GetSnapshot looks up a snapshot by ID.
	GetSnapshot(ctx context.Context, id string) (WorkflowSnapshot, error)

	// AdmitParticipant creates a participant at the snapshot's entry step
	// with status PENDING and binds it to that snapshot for its lifetime.
	AdmitParticipant(ctx context.Context, tenantID, snapshotID string) (*Participant, error)

	// GetParticipant looks up a participant by ID. Soft-deleted
	// participants are reported as not found.
	GetParticipant(ctx context.Context, id string) (*Participant, error)

	// ProcessWorkflowAction resolves action against the participant's
	// current step, applies the guarded state update and appends one
	// Approval row plus one audit entry.
	//
	// If expectedVersion is non-nil the update only commits when the
	// participant's version stamp still equals it; a stale stamp fails
	// with ConflictError and leaves state untouched. A nil
	// expectedVersion makes the update unconditional (reserved for the
	// SYSTEM actor, which always acts on a fresh read).
	ProcessWorkflowAction(ctx context.Context, participantID, actorID string, action Action, remarks string, expectedVersion *time.Time) (*TransitionResult, error)

	// CheckOverdueSLAs sweeps every active SLA-bearing participant,
	// classifies its time-in-step and dispatches the configured breach
	// action. Per-participant failures are recorded in the report and
	// never abort the sweep; only a failure to load the candidate list
	// propagates.
	CheckOverdueSLAs(ctx context.Context) (*SweepReport, error)

	// ListApprovals returns a participant's ledger rows in append order.
	ListApprovals(ctx context.Context, participantID string) ([]Approval, error)
}

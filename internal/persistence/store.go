package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/accredia/stepgate/pkg/api"
)

var (
	// ErrSnapshotNotFound is returned when a workflow snapshot is not found.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists is returned when saving a snapshot whose ID is
	// already registered. Snapshots are immutable; edits mint new IDs.
	ErrSnapshotExists = errors.New("snapshot already exists")

	// ErrParticipantNotFound is returned when a participant is missing or
	// soft-deleted.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrNoApprovals is returned when a participant has no ledger rows yet.
	ErrNoApprovals = errors.New("no approvals recorded")

	// ErrVersionConflict is returned by a conditional update whose
	// expected version stamp no longer matches the stored row.
	ErrVersionConflict = errors.New("participant version conflict")
)

// SnapshotStore handles storage of immutable workflow snapshots.
type SnapshotStore interface {
	// SaveSnapshot stores a snapshot. Saving an ID that already exists
	// fails with ErrSnapshotExists.
	SaveSnapshot(ctx context.Context, snap api.WorkflowSnapshot) error

	// GetSnapshot returns the snapshot with the given ID.
	GetSnapshot(ctx context.Context, id string) (api.WorkflowSnapshot, error)
}

// SLACandidate is one row of the bulk sweep query: an active, non-deleted
// participant whose current step declares an SLA duration, together with
// the moment it entered that step (latest approval timestamp, or the
// participant's own creation time when the ledger is still empty).
type SLACandidate struct {
	ParticipantID string
	TenantID      string
	StepID        string

	SLADurationMinutes int
	SLAWarningMinutes  int
	SLAAction          api.SLAAction

	EnteredStepAt time.Time
}

// ParticipantStore handles storage of participants.
//
// All reads exclude soft-deleted rows.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p *api.Participant) error

	GetParticipant(ctx context.Context, id string) (*api.Participant, error)

	// UpdateParticipant persists current step, status and version stamp.
	//
	// When expectedVersion is non-nil the update is conditioned on the
	// stored stamp equaling it; zero rows affected maps to
	// ErrVersionConflict. When expectedVersion is nil the update is
	// unconditional and zero rows affected maps to
	// ErrParticipantNotFound.
	UpdateParticipant(ctx context.Context, p *api.Participant, expectedVersion *time.Time) error

	// SoftDeleteParticipant marks the participant deleted at the given
	// moment, hiding it from every subsequent read. Participant records
	// are owned by the surrounding registration domain; rows are never
	// physically removed here.
	SoftDeleteParticipant(ctx context.Context, id string, at time.Time) error

	// ListSLACandidates returns the sweep candidate set in a stable
	// order (admission order).
	ListSLACandidates(ctx context.Context) ([]SLACandidate, error)
}

// ApprovalStore handles the append-only approval ledger.
type ApprovalStore interface {
	AppendApproval(ctx context.Context, row *api.Approval) error

	// LatestApproval returns the most recently appended row for the
	// participant, or ErrNoApprovals.
	LatestApproval(ctx context.Context, participantID string) (*api.Approval, error)

	// ListApprovals returns all rows for the participant in append order.
	ListApprovals(ctx context.Context, participantID string) ([]api.Approval, error)
}

// Persistence bundles the store interfaces so the engine can depend on a
// single abstraction.
type Persistence struct {
	Snapshots    SnapshotStore
	Participants ParticipantStore
	Approvals    ApprovalStore
}

package stepgate

import (
	"context"
	"database/sql"
	"time"

	"github.com/accredia/stepgate/internal/engine"
	"github.com/accredia/stepgate/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine           = api.Engine
	WorkflowSnapshot = api.WorkflowSnapshot
	Step             = api.Step
	Participant      = api.Participant
	Approval         = api.Approval
	TransitionResult = api.TransitionResult
	SweepReport      = api.SweepReport
	SweepEntry       = api.SweepEntry
	Status           = api.Status
	Action           = api.Action
	SLAAction        = api.SLAAction
	AuditSink        = api.AuditSink
	AuditEntry       = api.AuditEntry
	Notifier         = api.Notifier
	Notification     = api.Notification
)

// Re-export common sink helpers.

var (
	NewLoggingAuditSink   = api.NewLoggingAuditSink
	NewCompositeAuditSink = api.NewCompositeAuditSink
	NewLoggingNotifier    = api.NewLoggingNotifier
)

// Re-export vocabulary values for convenience.

const (
	StatusPending    = api.StatusPending
	StatusInProgress = api.StatusInProgress
	StatusApproved   = api.StatusApproved
	StatusRejected   = api.StatusRejected

	ActionApprove  = api.ActionApprove
	ActionReject   = api.ActionReject
	ActionBypass   = api.ActionBypass
	ActionReturn   = api.ActionReturn
	ActionEscalate = api.ActionEscalate
	ActionPrint    = api.ActionPrint

	SLAActionNotify      = api.SLAActionNotify
	SLAActionEscalate    = api.SLAActionEscalate
	SLAActionAutoApprove = api.SLAActionAutoApprove
	SLAActionAutoReject  = api.SLAActionAutoReject

	SystemUserID = api.SystemUserID
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithSinks returns an in-memory Engine with the given
// audit sink and notifier.
func NewInMemoryEngineWithSinks(audit AuditSink, notifier Notifier) Engine {
	return engine.NewInMemoryEngineWithSinks(audit, notifier)
}

// NewSQLiteEngine returns an Engine that persists snapshots, participants
// and the approval ledger in a SQLite database.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewSQLiteEngineWithSinks returns a SQLite-backed Engine with the given
// audit sink and notifier.
func NewSQLiteEngineWithSinks(db *sql.DB, audit AuditSink, notifier Notifier) (Engine, error) {
	return engine.NewSQLiteEngineWithSinks(db, audit, notifier)
}

// NewPostgresEngine returns an Engine that persists state in PostgreSQL.
func NewPostgresEngine(db *sql.DB) (Engine, error) {
	return engine.NewPostgresEngine(db)
}

// NewPostgresEngineWithSinks returns a Postgres-backed Engine with the
// given audit sink and notifier.
func NewPostgresEngineWithSinks(db *sql.DB, audit AuditSink, notifier Notifier) (Engine, error) {
	return engine.NewPostgresEngineWithSinks(db, audit, notifier)
}

// Convenience helpers that just forward to the underlying Engine.

// RegisterSnapshot validates and stores an immutable snapshot.
func RegisterSnapshot(ctx context.Context, eng Engine, snap WorkflowSnapshot) error {
	return eng.RegisterSnapshot(ctx, snap)
}

// AdmitParticipant creates a participant at the snapshot's entry step.
func AdmitParticipant(ctx context.Context, eng Engine, tenantID, snapshotID string) (*Participant, error) {
	return eng.AdmitParticipant(ctx, tenantID, snapshotID)
}

// ProcessWorkflowAction applies a navigation action for the given actor.
func ProcessWorkflowAction(ctx context.Context, eng Engine, participantID, actorID string, action Action, remarks string, expectedVersion *time.Time) (*TransitionResult, error) {
	return eng.ProcessWorkflowAction(ctx, participantID, actorID, action, remarks, expectedVersion)
}

// CheckOverdueSLAs performs one SLA sweep.
func CheckOverdueSLAs(ctx context.Context, eng Engine) (*SweepReport, error) {
	return eng.CheckOverdueSLAs(ctx)
}

// GetParticipant fetches a participant by ID.
func GetParticipant(ctx context.Context, eng Engine, id string) (*Participant, error) {
	return eng.GetParticipant(ctx, id)
}

// ListApprovals returns a participant's ledger rows in append order.
func ListApprovals(ctx context.Context, eng Engine, participantID string) ([]Approval, error) {
	return eng.ListApprovals(ctx, participantID)
}

package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/accredia/stepgate/internal/persistence"
	"github.com/accredia/stepgate/pkg/api"
)

// engineImpl is a synchronous, in-process engine implementation. Each call
// completes or fails within the underlying store round-trip; there is no
// internal retry and no background work.
type engineImpl struct {
	snapshots    persistence.SnapshotStore
	participants persistence.ParticipantStore
	approvals    persistence.ApprovalStore

	audit    api.AuditSink
	notifier api.Notifier
	clock    Clock
	logger   *slog.Logger
}

// Config describes how to construct an engineImpl.
// Only used inside this package; external callers use the helper functions.
type Config struct {
	Persistence persistence.Persistence
	AuditSink   api.AuditSink
	Notifier    api.Notifier
	Clock       Clock
	Logger      *slog.Logger
}

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() api.Engine {
	mem := persistence.NewMemoryStore()
	return NewEngine(persistence.Persistence{
		Snapshots:    mem,
		Participants: mem,
		Approvals:    mem,
	})
}

// NewSQLiteEngine returns an Engine that persists snapshots, participants
// and the approval ledger in SQLite.
func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(persistence.Persistence{
		Snapshots:    store,
		Participants: store,
		Approvals:    store,
	}), nil
}

// NewPostgresEngine returns an Engine that persists snapshots, participants
// and the approval ledger in PostgreSQL.
func NewPostgresEngine(db *sql.DB) (api.Engine, error) {
	store, err := persistence.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(persistence.Persistence{
		Snapshots:    store,
		Participants: store,
		Approvals:    store,
	}), nil
}

// NewInMemoryEngineWithSinks returns an in-memory Engine with the given
// audit sink and notifier.
func NewInMemoryEngineWithSinks(audit api.AuditSink, notifier api.Notifier) api.Engine {
	mem := persistence.NewMemoryStore()
	return NewEngineWithConfig(Config{
		Persistence: persistence.Persistence{
			Snapshots:    mem,
			Participants: mem,
			Approvals:    mem,
		},
		AuditSink: audit,
		Notifier:  notifier,
	})
}

// NewSQLiteEngineWithSinks returns a SQLite-backed Engine with the given
// audit sink and notifier.
func NewSQLiteEngineWithSinks(db *sql.DB, audit api.AuditSink, notifier api.Notifier) (api.Engine, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{
		Persistence: persistence.Persistence{
			Snapshots:    store,
			Participants: store,
			Approvals:    store,
		},
		AuditSink: audit,
		Notifier:  notifier,
	}), nil
}

// NewPostgresEngineWithSinks returns a Postgres-backed Engine with the
// given audit sink and notifier.
func NewPostgresEngineWithSinks(db *sql.DB, audit api.AuditSink, notifier api.Notifier) (api.Engine, error) {
	store, err := persistence.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{
		Persistence: persistence.Persistence{
			Snapshots:    store,
			Participants: store,
			Approvals:    store,
		},
		AuditSink: audit,
		Notifier:  notifier,
	}), nil
}

// NewEngine returns an Engine over the given persistence with default
// sinks (noop audit, noop notifier) and the system clock.
func NewEngine(p persistence.Persistence) api.Engine {
	return NewEngineWithConfig(Config{Persistence: p})
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	audit := cfg.AuditSink
	if audit == nil {
		audit = api.NoopAuditSink{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = api.NoopNotifier{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &engineImpl{
		snapshots:    cfg.Persistence.Snapshots,
		participants: cfg.Persistence.Participants,
		approvals:    cfg.Persistence.Approvals,
		audit:        audit,
		notifier:     notifier,
		clock:        clock,
		logger:       logger,
	}
}

func (e *engineImpl) RegisterSnapshot(ctx context.Context, snap api.WorkflowSnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	if err := e.snapshots.SaveSnapshot(ctx, snap); err != nil {
		if errors.Is(err, persistence.ErrSnapshotExists) {
			return fmt.Errorf("snapshot already registered: %s: %w", snap.ID, persistence.ErrSnapshotExists)
		}
		return err
	}
	return nil
}

func (e *engineImpl) GetSnapshot(ctx context.Context, id string) (api.WorkflowSnapshot, error) {
	snap, err := e.snapshots.GetSnapshot(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrSnapshotNotFound) {
			return api.WorkflowSnapshot{}, api.NewNotFoundError("snapshot", id)
		}
		return api.WorkflowSnapshot{}, err
	}
	return snap, nil
}

func (e *engineImpl) AdmitParticipant(ctx context.Context, tenantID, snapshotID string) (*api.Participant, error) {
	snap, err := e.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	entry, ok := snap.EntryStep()
	if !ok {
		return nil, fmt.Errorf("snapshot %s has no entry point", snapshotID)
	}

	now := e.clock.Now()
	p := &api.Participant{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		CurrentStepID: entry.ID,
		Status:        api.StatusPending,
		SnapshotID:    snapshotID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.participants.CreateParticipant(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (e *engineImpl) GetParticipant(ctx context.Context, id string) (*api.Participant, error) {
	p, err := e.participants.GetParticipant(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrParticipantNotFound) {
			return nil, api.NewNotFoundError("participant", id)
		}
		return nil, err
	}
	return p, nil
}

func (e *engineImpl) ListApprovals(ctx context.Context, participantID string) ([]api.Approval, error) {
	return e.approvals.ListApprovals(ctx, participantID)
}

// ProcessWorkflowAction is the single transition path for both human and
// system actors. See api.Engine for the contract.
func (e *engineImpl) ProcessWorkflowAction(
	ctx context.Context,
	participantID, actorID string,
	action api.Action,
	remarks string,
	expectedVersion *time.Time,
) (*api.TransitionResult, error) {
	p, err := e.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}

	snap, err := e.snapshots.GetSnapshot(ctx, p.SnapshotID)
	if err != nil {
		if errors.Is(err, persistence.ErrSnapshotNotFound) {
			return nil, api.NewNotFoundError("snapshot", p.SnapshotID)
		}
		return nil, err
	}

	step, ok := snap.StepByID(p.CurrentStepID)
	if !ok {
		return nil, api.NewNotFoundError("step", p.CurrentStepID)
	}

	// Completion: a forward action on a final step terminates the journey
	// instead of hopping further, even if next_step_id is populated.
	isCompletion := step.IsFinalStep && (action == api.ActionApprove || action == api.ActionPrint)

	var targetID string
	if !isCompletion {
		targetID, err = e.resolveTarget(ctx, p, step, action)
		if err != nil {
			return nil, err
		}
	}

	now := e.clock.Now()
	updated := *p
	updated.UpdatedAt = now
	if isCompletion {
		updated.Status = api.StatusApproved
	} else {
		updated.Status = api.StatusInProgress
		updated.CurrentStepID = targetID
	}

	if err := e.participants.UpdateParticipant(ctx, &updated, expectedVersion); err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			return nil, &api.ConflictError{ParticipantID: participantID}
		}
		if errors.Is(err, persistence.ErrParticipantNotFound) {
			return nil, api.NewNotFoundError("participant", participantID)
		}
		return nil, err
	}

	row := &api.Approval{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		StepID:        step.ID, // the step the participant was leaving
		UserID:        actorID,
		Action:        action,
		Remarks:       remarks,
		CreatedAt:     now,
	}
	if err := e.approvals.AppendApproval(ctx, row); err != nil {
		return nil, fmt.Errorf("append approval: %w", err)
	}

	if err := e.audit.Record(ctx, api.AuditEntry{
		TenantID:   p.TenantID,
		UserID:     actorID,
		Action:     string(action),
		EntityType: "participant",
		EntityID:   participantID,
	}); err != nil {
		// Audit is a passive sink; a failing sink must not fail the
		// already-committed transition.
		e.logger.WarnContext(ctx, "audit sink failed",
			slog.String("participant_id", participantID),
			slog.Any("error", err),
		)
	}

	result := &api.TransitionResult{
		PreviousStepID: step.ID,
		IsComplete:     isCompletion,
	}
	if !isCompletion {
		result.NextStepID = targetID
	}
	return result, nil
}

// resolveTarget maps an action to the configured target step on the
// current step. RETURN resolves dynamically through the ledger instead.
func (e *engineImpl) resolveTarget(ctx context.Context, p *api.Participant, step api.Step, action api.Action) (string, error) {
	var targetID string

	switch action {
	case api.ActionApprove, api.ActionPrint:
		targetID = step.NextStepID
	case api.ActionReject:
		targetID = step.RejectionTargetID
	case api.ActionBypass:
		targetID = step.BypassTargetID
	case api.ActionEscalate:
		targetID = step.EscalationTargetID
	case api.ActionReturn:
		last, err := e.approvals.LatestApproval(ctx, p.ID)
		if err != nil {
			if errors.Is(err, persistence.ErrNoApprovals) {
				return "", &api.InvalidTransitionError{
					StepID: step.ID,
					Action: action,
					Reason: "no approval history to return to",
				}
			}
			return "", err
		}
		return last.StepID, nil
	default:
		return "", &api.InvalidTransitionError{
			StepID: step.ID,
			Action: action,
			Reason: "unknown action",
		}
	}

	if targetID == "" {
		return "", &api.InvalidTransitionError{StepID: step.ID, Action: action}
	}
	return targetID, nil
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/accredia/stepgate/pkg/api"
)

// PostgresStore is a durable store backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib" or "github.com/lib/pq").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
//
// Timestamps are stored as nanosecond integers so the optimistic version
// comparison is exact regardless of column precision.
type PostgresStore struct {
	db *sql.DB
}

// Ensure PostgresStore implements the interfaces.
var _ SnapshotStore = (*PostgresStore)(nil)

var _ ParticipantStore = (*PostgresStore)(nil)

var _ ApprovalStore = (*PostgresStore)(nil)

// NewPostgresStore initializes the required schema in the given database
// and returns a new PostgresStore.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// initSchema runs one statement per Exec: the pgx extended protocol does
// not accept multi-statement strings.
func (s *PostgresStore) initSchema() error {
	stmts := []string{`
		CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`, `
		CREATE TABLE IF NOT EXISTS snapshot_steps (
			snapshot_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			step_type TEXT NOT NULL DEFAULT '',
			is_entry_point BOOLEAN NOT NULL DEFAULT FALSE,
			is_final_step BOOLEAN NOT NULL DEFAULT FALSE,
			next_step_id TEXT NOT NULL DEFAULT '',
			rejection_target_id TEXT NOT NULL DEFAULT '',
			bypass_target_id TEXT NOT NULL DEFAULT '',
			escalation_target_id TEXT NOT NULL DEFAULT '',
			sla_duration_minutes INTEGER NOT NULL DEFAULT 0,
			sla_warning_minutes INTEGER NOT NULL DEFAULT 0,
			sla_action TEXT NOT NULL DEFAULT '',
			assigned_role_id TEXT NOT NULL DEFAULT '',
			conditions TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (snapshot_id, id)
		)`, `
		CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL DEFAULT '',
			current_step_id TEXT NOT NULL,
			status TEXT NOT NULL,
			snapshot_id TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			deleted_at BIGINT
		)`, `
		CREATE TABLE IF NOT EXISTS approvals (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			remarks TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`, `
		CREATE INDEX IF NOT EXISTS idx_approvals_participant ON approvals(participant_id, seq)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap api.WorkflowSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, name, version) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		snap.ID, snap.Name, snap.Version,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSnapshotExists
	}

	for _, st := range snap.Steps {
		conditions := ""
		if len(st.Conditions) > 0 {
			b, err := json.Marshal(st.Conditions)
			if err != nil {
				return err
			}
			conditions = string(b)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_steps (
				snapshot_id, id, name, sort_order, step_type,
				is_entry_point, is_final_step,
				next_step_id, rejection_target_id, bypass_target_id, escalation_target_id,
				sla_duration_minutes, sla_warning_minutes, sla_action,
				assigned_role_id, conditions
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			snap.ID, st.ID, st.Name, st.SortOrder, st.StepType,
			st.IsEntryPoint, st.IsFinalStep,
			st.NextStepID, st.RejectionTargetID, st.BypassTargetID, st.EscalationTargetID,
			st.SLADurationMinutes, st.SLAWarningMinutes, string(st.SLAAction),
			st.AssignedRoleID, conditions,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (api.WorkflowSnapshot, error) {
	var snap api.WorkflowSnapshot

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, version FROM snapshots WHERE id = $1`, id,
	).Scan(&snap.ID, &snap.Name, &snap.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.WorkflowSnapshot{}, ErrSnapshotNotFound
		}
		return api.WorkflowSnapshot{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sort_order, step_type,
			is_entry_point, is_final_step,
			next_step_id, rejection_target_id, bypass_target_id, escalation_target_id,
			sla_duration_minutes, sla_warning_minutes, sla_action,
			assigned_role_id, conditions
		FROM snapshot_steps
		WHERE snapshot_id = $1
		ORDER BY sort_order ASC, id ASC`, id)
	if err != nil {
		return api.WorkflowSnapshot{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st         api.Step
			slaAction  string
			conditions string
		)
		if err := rows.Scan(
			&st.ID, &st.Name, &st.SortOrder, &st.StepType,
			&st.IsEntryPoint, &st.IsFinalStep,
			&st.NextStepID, &st.RejectionTargetID, &st.BypassTargetID, &st.EscalationTargetID,
			&st.SLADurationMinutes, &st.SLAWarningMinutes, &slaAction,
			&st.AssignedRoleID, &conditions,
		); err != nil {
			return api.WorkflowSnapshot{}, err
		}

		st.SLAAction = api.SLAAction(slaAction)

		if conditions != "" {
			if err := json.Unmarshal([]byte(conditions), &st.Conditions); err != nil {
				return api.WorkflowSnapshot{}, err
			}
		}

		snap.Steps = append(snap.Steps, st)
	}

	return snap, rows.Err()
}

func (s *PostgresStore) CreateParticipant(ctx context.Context, p *api.Participant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, tenant_id, current_step_id, status, snapshot_id, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)`,
		p.ID, p.TenantID, p.CurrentStepID, string(p.Status), p.SnapshotID,
		p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano(),
	)
	return err
}

func (s *PostgresStore) GetParticipant(ctx context.Context, id string) (*api.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, current_step_id, status, snapshot_id, created_at, updated_at
		FROM participants
		WHERE id = $1 AND deleted_at IS NULL`, id)

	var p api.Participant
	var status string
	var createdAt, updatedAt int64

	if err := row.Scan(&p.ID, &p.TenantID, &p.CurrentStepID, &status, &p.SnapshotID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}

	p.Status = api.Status(status)
	p.CreatedAt = time.Unix(0, createdAt)
	p.UpdatedAt = time.Unix(0, updatedAt)

	return &p, nil
}

func (s *PostgresStore) UpdateParticipant(ctx context.Context, p *api.Participant, expectedVersion *time.Time) error {
	var (
		res sql.Result
		err error
	)

	if expectedVersion != nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE participants
			SET current_step_id = $1, status = $2, updated_at = $3
			WHERE id = $4 AND deleted_at IS NULL AND updated_at = $5`,
			p.CurrentStepID, string(p.Status), p.UpdatedAt.UnixNano(),
			p.ID, expectedVersion.UnixNano(),
		)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE participants
			SET current_step_id = $1, status = $2, updated_at = $3
			WHERE id = $4 AND deleted_at IS NULL`,
			p.CurrentStepID, string(p.Status), p.UpdatedAt.UnixNano(),
			p.ID,
		)
	}
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if expectedVersion != nil {
			return ErrVersionConflict
		}
		return ErrParticipantNotFound
	}

	return nil
}

func (s *PostgresStore) SoftDeleteParticipant(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE participants SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		at.UnixNano(), id,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrParticipantNotFound
	}

	return nil
}

func (s *PostgresStore) ListSLACandidates(ctx context.Context) ([]SLACandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.tenant_id, p.current_step_id,
			st.sla_duration_minutes, st.sla_warning_minutes, st.sla_action,
			COALESCE(
				(SELECT a.created_at FROM approvals a WHERE a.participant_id = p.id ORDER BY a.seq DESC LIMIT 1),
				p.created_at
			) AS entered_at
		FROM participants p
		JOIN snapshot_steps st ON st.snapshot_id = p.snapshot_id AND st.id = p.current_step_id
		WHERE p.deleted_at IS NULL
			AND p.status NOT IN ($1, $2)
			AND st.sla_duration_minutes > 0
		ORDER BY p.created_at ASC, p.id ASC`,
		string(api.StatusApproved), string(api.StatusRejected),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SLACandidate
	for rows.Next() {
		var (
			c         SLACandidate
			slaAction string
			enteredAt int64
		)
		if err := rows.Scan(
			&c.ParticipantID, &c.TenantID, &c.StepID,
			&c.SLADurationMinutes, &c.SLAWarningMinutes, &slaAction,
			&enteredAt,
		); err != nil {
			return nil, err
		}
		c.SLAAction = api.SLAAction(slaAction)
		c.EnteredStepAt = time.Unix(0, enteredAt)
		out = append(out, c)
	}

	return out, rows.Err()
}

func (s *PostgresStore) AppendApproval(ctx context.Context, row *api.Approval) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (id, participant_id, step_id, user_id, action, remarks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.ID, row.ParticipantID, row.StepID, row.UserID, string(row.Action), row.Remarks,
		row.CreatedAt.UnixNano(),
	)
	return err
}

func (s *PostgresStore) LatestApproval(ctx context.Context, participantID string) (*api.Approval, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, participant_id, step_id, user_id, action, remarks, created_at
		FROM approvals
		WHERE participant_id = $1
		ORDER BY seq DESC
		LIMIT 1`, participantID)

	a, err := scanApproval(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoApprovals
		}
		return nil, err
	}
	return a, nil
}

func (s *PostgresStore) ListApprovals(ctx context.Context, participantID string) ([]api.Approval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, step_id, user_id, action, remarks, created_at
		FROM approvals
		WHERE participant_id = $1
		ORDER BY seq ASC`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Approval
	for rows.Next() {
		a, err := scanApproval(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

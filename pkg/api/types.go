package api

import (
	"errors"
	"fmt"
	"time"
)

// SystemUserID is the reserved actor recorded on transitions triggered by
// the SLA scanner rather than a human user.
const SystemUserID = "SYSTEM"

// Status represents the lifecycle state of a participant.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
)

// IsTerminal reports whether s is a final status. A participant in a
// terminal status is never picked up by the SLA scanner.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Action is a workflow navigation action. The set is closed; anything else
// fails target resolution.
type Action string

const (
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionBypass   Action = "BYPASS"
	ActionReturn   Action = "RETURN"
	ActionEscalate Action = "ESCALATE"
	ActionPrint    Action = "PRINT"
)

// SLAAction is the automatic action a step takes when its SLA is breached.
type SLAAction string

const (
	SLAActionNotify      SLAAction = "NOTIFY"
	SLAActionEscalate    SLAAction = "ESCALATE"
	SLAActionAutoApprove SLAAction = "AUTO_APPROVE"
	SLAActionAutoReject  SLAAction = "AUTO_REJECT"
)

// Step is a node in the workflow graph.
//
// Outbound targets are step IDs within the same snapshot; an empty string
// means the target is not configured for this step. Targets may point
// backwards: rejection and return edges intentionally form cycles.
//
// SLADurationMinutes == 0 means the step carries no SLA policy.
type Step struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	StepType  string `json:"step_type"`

	IsEntryPoint bool `json:"is_entry_point"`
	IsFinalStep  bool `json:"is_final_step"`

	NextStepID         string `json:"next_step_id,omitempty"`
	RejectionTargetID  string `json:"rejection_target_id,omitempty"`
	BypassTargetID     string `json:"bypass_target_id,omitempty"`
	EscalationTargetID string `json:"escalation_target_id,omitempty"`

	SLADurationMinutes int       `json:"sla_duration_minutes,omitempty"`
	SLAWarningMinutes  int       `json:"sla_warning_minutes,omitempty"`
	SLAAction          SLAAction `json:"sla_action,omitempty"`

	AssignedRoleID string         `json:"assigned_role_id,omitempty"`
	Conditions     map[string]any `json:"conditions,omitempty"`
}

// HasSLA reports whether the step declares an SLA duration.
func (s Step) HasSLA() bool {
	return s.SLADurationMinutes > 0
}

// SLADuration returns the step's SLA budget as a time.Duration.
func (s Step) SLADuration() time.Duration {
	return time.Duration(s.SLADurationMinutes) * time.Minute
}

// SLAWarning returns the step's warning threshold as a time.Duration.
func (s Step) SLAWarning() time.Duration {
	return time.Duration(s.SLAWarningMinutes) * time.Minute
}

// WorkflowSnapshot is an immutable, versioned step graph. Once a snapshot
// is registered it is never mutated; a definition edit produces a new
// snapshot under a new ID, and in-flight participants keep traversing the
// snapshot they entered with.
type WorkflowSnapshot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
	Steps   []Step `json:"steps"`
}

// StepByID returns the step with the given ID, if present.
func (s WorkflowSnapshot) StepByID(id string) (Step, bool) {
	for _, st := range s.Steps {
		if st.ID == id {
			return st, true
		}
	}
	return Step{}, false
}

// EntryStep returns the snapshot's designated entry point, if present.
func (s WorkflowSnapshot) EntryStep() (Step, bool) {
	for _, st := range s.Steps {
		if st.IsEntryPoint {
			return st, true
		}
	}
	return Step{}, false
}

// Validate checks the structural invariants of a snapshot: a non-empty ID,
// at least one step, unique non-empty step IDs, exactly one entry point,
// and a closed graph (every configured target resolves to a step within
// the snapshot). Cycles are deliberately not checked; rework loops are a
// feature of the graph.
func (s WorkflowSnapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("snapshot must have at least one step")
	}

	ids := make(map[string]bool, len(s.Steps))
	entries := 0
	for _, st := range s.Steps {
		if st.ID == "" {
			return errors.New("step ID is required")
		}
		if ids[st.ID] {
			return fmt.Errorf("duplicate step ID: %s", st.ID)
		}
		ids[st.ID] = true
		if st.IsEntryPoint {
			entries++
		}
	}
	if entries != 1 {
		return fmt.Errorf("snapshot must have exactly one entry point, found %d", entries)
	}

	for _, st := range s.Steps {
		for _, target := range []string{st.NextStepID, st.RejectionTargetID, st.BypassTargetID, st.EscalationTargetID} {
			if target != "" && !ids[target] {
				return fmt.Errorf("step %s references unknown target step %s", st.ID, target)
			}
		}
	}

	return nil
}

// Participant is the subject moving through a workflow. It is bound to
// exactly one snapshot for its lifetime.
//
// UpdatedAt doubles as the optimistic version stamp: conditional updates
// compare-and-swap on it, and every successful transition advances it.
type Participant struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id,omitempty"`
	CurrentStepID string     `json:"current_step_id"`
	Status        Status     `json:"status"`
	SnapshotID    string     `json:"snapshot_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"-"`
}

// Approval is one append-only ledger row recording a transition decision.
// StepID is the step the participant was at when the decision was made.
// Besides serving as history, the latest row per participant drives both
// RETURN resolution and SLA time-in-step computation.
type Approval struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	StepID        string    `json:"step_id"`
	UserID        string    `json:"user_id"`
	Action        Action    `json:"action"`
	Remarks       string    `json:"remarks,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransitionResult describes the outcome of a successful navigation action.
// NextStepID is empty when IsComplete is true.
type TransitionResult struct {
	PreviousStepID string `json:"previous_step_id"`
	NextStepID     string `json:"next_step_id,omitempty"`
	IsComplete     bool   `json:"is_complete"`
}

// SweepEntry is the per-participant outcome of one SLA sweep. Entries
// appear in candidate order, one per breached participant, each
// independently successful or failed.
type SweepEntry struct {
	ParticipantID string    `json:"participant_id"`
	Action        SLAAction `json:"action"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
}

// SweepReport aggregates one SLA sweep.
type SweepReport struct {
	Checked  int          `json:"checked"`
	Warnings int          `json:"warnings"`
	Breached int          `json:"breached"`
	Actions  []SweepEntry `json:"actions"`
}

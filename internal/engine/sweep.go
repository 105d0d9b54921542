package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/accredia/stepgate/internal/persistence"
	"github.com/accredia/stepgate/pkg/api"
)

// breachState classifies a candidate's time-in-step.
type breachState int

const (
	slaOK breachState = iota
	slaWarning
	slaBreached
)

// classify applies the SLA thresholds. The breach boundary is inclusive:
// elapsed == duration is a breach, not a warning.
func classify(elapsed time.Duration, c persistence.SLACandidate) breachState {
	duration := time.Duration(c.SLADurationMinutes) * time.Minute
	if elapsed >= duration {
		return slaBreached
	}
	if c.SLAWarningMinutes > 0 && elapsed >= duration-time.Duration(c.SLAWarningMinutes)*time.Minute {
		return slaWarning
	}
	return slaOK
}

// CheckOverdueSLAs sweeps all SLA-bearing active participants. Candidates
// are processed sequentially in store order; a per-participant failure is
// recorded in its report entry and never aborts the remaining candidates.
func (e *engineImpl) CheckOverdueSLAs(ctx context.Context) (*api.SweepReport, error) {
	candidates, err := e.participants.ListSLACandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sla candidates: %w", err)
	}

	now := e.clock.Now()
	report := &api.SweepReport{}

	for _, c := range candidates {
		report.Checked++

		elapsed := now.Sub(c.EnteredStepAt)
		switch classify(elapsed, c) {
		case slaBreached:
			report.Breached++
			report.Actions = append(report.Actions, e.applyBreachAction(ctx, c, elapsed))
		case slaWarning:
			report.Warnings++
			e.dispatchNotification(ctx, c, api.NotificationSLAWarning, elapsed)
		}
	}

	return report, nil
}

// applyBreachAction dispatches the step's configured SLA action for one
// breached candidate and returns its report entry. Errors are captured in
// the entry, not returned.
func (e *engineImpl) applyBreachAction(ctx context.Context, c persistence.SLACandidate, elapsed time.Duration) api.SweepEntry {
	entry := api.SweepEntry{
		ParticipantID: c.ParticipantID,
		Action:        c.SLAAction,
	}

	switch c.SLAAction {
	case api.SLAActionNotify:
		// Best-effort side effect only: no engine call, no ledger row,
		// and the entry is reported successful regardless of delivery.
		e.dispatchNotification(ctx, c, api.NotificationSLABreach, elapsed)
		entry.Success = true
		return entry

	case api.SLAActionEscalate, api.SLAActionAutoApprove, api.SLAActionAutoReject:
		action := api.ActionEscalate
		switch c.SLAAction {
		case api.SLAActionAutoApprove:
			action = api.ActionApprove
		case api.SLAActionAutoReject:
			action = api.ActionReject
		}

		remarks := fmt.Sprintf("SLA breached on step %s after %s", c.StepID, elapsed.Round(time.Minute))

		// The system actor never carries a version token: the candidate
		// row was just read and a lost race simply means some other
		// write already moved the participant off the stale step.
		_, err := e.ProcessWorkflowAction(ctx, c.ParticipantID, api.SystemUserID, action, remarks, nil)
		if err != nil {
			entry.Success = false
			entry.Error = err.Error()
			e.logger.WarnContext(ctx, "sla action failed",
				slog.String("participant_id", c.ParticipantID),
				slog.String("sla_action", string(c.SLAAction)),
				slog.Any("error", err),
			)
			return entry
		}

		entry.Success = true
		return entry

	default:
		entry.Success = false
		entry.Error = fmt.Sprintf("no SLA action configured for step %s", c.StepID)
		return entry
	}
}

func (e *engineImpl) dispatchNotification(ctx context.Context, c persistence.SLACandidate, typ api.NotificationType, elapsed time.Duration) {
	err := e.notifier.Dispatch(ctx, api.Notification{
		TenantID: c.TenantID,
		Type:     typ,
		Payload: map[string]any{
			"participant_id":  c.ParticipantID,
			"step_id":         c.StepID,
			"elapsed_minutes": int(elapsed.Minutes()),
			"sla_minutes":     c.SLADurationMinutes,
		},
	})
	if err != nil {
		e.logger.WarnContext(ctx, "notification dispatch failed",
			slog.String("participant_id", c.ParticipantID),
			slog.String("type", string(typ)),
			slog.Any("error", err),
		)
	}
}

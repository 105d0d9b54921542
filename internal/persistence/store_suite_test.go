package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/accredia/stepgate/pkg/api"
)

// fullStore is what every backend in this package provides: all three
// store interfaces on one value.
type fullStore interface {
	SnapshotStore
	ParticipantStore
	ApprovalStore
}

func reviewSnapshot() api.WorkflowSnapshot {
	return api.WorkflowSnapshot{
		ID:      "accreditation-v3",
		Name:    "accreditation",
		Version: 3,
		Steps: []api.Step{
			{
				ID:                 "intake",
				Name:               "Intake Review",
				SortOrder:          1,
				IsEntryPoint:       true,
				NextStepID:         "security",
				SLADurationMinutes: 60,
				SLAWarningMinutes:  15,
				SLAAction:          api.SLAActionNotify,
				Conditions:         map[string]any{"channel": "online"},
			},
			{
				ID:                "security",
				Name:              "Security Vetting",
				SortOrder:         2,
				NextStepID:        "badge",
				RejectionTargetID: "intake",
				BypassTargetID:    "badge",
			},
			{
				ID:          "badge",
				Name:        "Badge Printing",
				SortOrder:   3,
				IsFinalStep: true,
			},
		},
	}
}

func mustSaveSnapshot(t *testing.T, s SnapshotStore, snap api.WorkflowSnapshot) {
	t.Helper()
	if err := s.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
}

func mustCreateParticipant(t *testing.T, s ParticipantStore, p *api.Participant) {
	t.Helper()
	if err := s.CreateParticipant(context.Background(), p); err != nil {
		t.Fatalf("CreateParticipant failed: %v", err)
	}
}

func newParticipant(id string, at time.Time) *api.Participant {
	return &api.Participant{
		ID:            id,
		TenantID:      "tenant-1",
		CurrentStepID: "intake",
		Status:        api.StatusPending,
		SnapshotID:    "accreditation-v3",
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func testSnapshotRoundtrip(t *testing.T, store fullStore) {
	ctx := context.Background()
	snap := reviewSnapshot()
	mustSaveSnapshot(t, store, snap)

	got, err := store.GetSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got.ID != snap.ID || got.Name != snap.Name || got.Version != snap.Version {
		t.Fatalf("snapshot header mismatch: got %+v", got)
	}
	if len(got.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(got.Steps))
	}

	intake, ok := got.StepByID("intake")
	if !ok {
		t.Fatalf("intake step missing")
	}
	if !intake.IsEntryPoint || intake.NextStepID != "security" {
		t.Fatalf("intake step mismatch: %+v", intake)
	}
	if intake.SLADurationMinutes != 60 || intake.SLAAction != api.SLAActionNotify {
		t.Fatalf("intake SLA mismatch: %+v", intake)
	}
	if intake.Conditions["channel"] != "online" {
		t.Fatalf("expected conditions to survive, got %v", intake.Conditions)
	}

	badge, ok := got.StepByID("badge")
	if !ok || !badge.IsFinalStep {
		t.Fatalf("badge step mismatch: %+v", badge)
	}
}

func testSnapshotImmutable(t *testing.T, store fullStore) {
	snap := reviewSnapshot()
	mustSaveSnapshot(t, store, snap)

	err := store.SaveSnapshot(context.Background(), snap)
	if !errors.Is(err, ErrSnapshotExists) {
		t.Fatalf("expected ErrSnapshotExists, got %v", err)
	}
}

func testSnapshotNotFound(t *testing.T, store fullStore) {
	_, err := store.GetSnapshot(context.Background(), "nope")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func testParticipantRoundtrip(t *testing.T, store fullStore) {
	ctx := context.Background()
	mustSaveSnapshot(t, store, reviewSnapshot())

	now := time.Now().Truncate(time.Millisecond)
	p := newParticipant("p-1", now)
	mustCreateParticipant(t, store, p)

	got, err := store.GetParticipant(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetParticipant failed: %v", err)
	}
	if got.CurrentStepID != "intake" || got.Status != api.StatusPending {
		t.Fatalf("participant mismatch: %+v", got)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("expected UpdatedAt %v, got %v", now, got.UpdatedAt)
	}

	if _, err := store.GetParticipant(ctx, "missing"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func testUnconditionalUpdate(t *testing.T, store fullStore) {
	ctx := context.Background()
	mustSaveSnapshot(t, store, reviewSnapshot())

	now := time.Now().Truncate(time.Millisecond)
	p := newParticipant("p-1", now)
	mustCreateParticipant(t, store, p)

	updated := *p
	updated.CurrentStepID = "security"
	updated.Status = api.StatusInProgress
	updated.UpdatedAt = now.Add(time.Minute)

	if err := store.UpdateParticipant(ctx, &updated, nil); err != nil {
		t.Fatalf("UpdateParticipant failed: %v", err)
	}

	got, err := store.GetParticipant(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetParticipant failed: %v", err)
	}
	if got.CurrentStepID != "security" || got.Status != api.StatusInProgress {
		t.Fatalf("update not applied: %+v", got)
	}

	missing := *p
	missing.ID = "missing"
	if err := store.UpdateParticipant(ctx, &missing, nil); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func testConditionalUpdate(t *testing.T, store fullStore) {
	ctx := context.Background()
	mustSaveSnapshot(t, store, reviewSnapshot())

	now := time.Now().Truncate(time.Millisecond)
	p := newParticipant("p-1", now)
	mustCreateParticipant(t, store, p)

	// Matching stamp commits.
	updated := *p
	updated.CurrentStepID = "security"
	updated.UpdatedAt = now.Add(time.Minute)
	if err := store.UpdateParticipant(ctx, &updated, &now); err != nil {
		t.Fatalf("conditional update with matching stamp failed: %v", err)
	}

	// The original stamp is now stale.
	again := updated
	again.CurrentStepID = "badge"
	again.UpdatedAt = now.Add(2 * time.Minute)
	if err := store.UpdateParticipant(ctx, &again, &now); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, err := store.GetParticipant(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetParticipant failed: %v", err)
	}
	if got.CurrentStepID != "security" {
		t.Fatalf("conflicting update must not apply, got step %q", got.CurrentStepID)
	}
}

func testSoftDelete(t *testing.T, store fullStore) {
	ctx := context.Background()
	mustSaveSnapshot(t, store, reviewSnapshot())

	now := time.Now().Truncate(time.Millisecond)
	mustCreateParticipant(t, store, newParticipant("p-1", now))

	if err := store.SoftDeleteParticipant(ctx, "p-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("SoftDeleteParticipant failed: %v", err)
	}

	if _, err := store.GetParticipant(ctx, "p-1"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("deleted participant must be invisible, got %v", err)
	}

	p := newParticipant("p-1", now)
	p.UpdatedAt = now.Add(time.Minute)
	if err := store.UpdateParticipant(ctx, p, nil); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("deleted participant must reject updates, got %v", err)
	}

	candidates, err := store.ListSLACandidates(ctx)
	if err != nil {
		t.Fatalf("ListSLACandidates failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("deleted participant must not be a sweep candidate, got %d", len(candidates))
	}

	if err := store.SoftDeleteParticipant(ctx, "p-1", now); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func testSLACandidates(t *testing.T, store fullStore) {
	ctx := context.Background()
	mustSaveSnapshot(t, store, reviewSnapshot())

	base := time.Now().Truncate(time.Millisecond)

	// On an SLA step, active: candidate.
	mustCreateParticipant(t, store, newParticipant("p-1", base))

	// On a step without an SLA: not a candidate.
	p2 := newParticipant("p-2", base.Add(time.Second))
	p2.CurrentStepID = "security"
	mustCreateParticipant(t, store, p2)

	// Terminal status: not a candidate.
	p3 := newParticipant("p-3", base.Add(2*time.Second))
	p3.Status = api.StatusApproved
	mustCreateParticipant(t, store, p3)

	// Admitted later, also on an SLA step: candidate, after p-1.
	mustCreateParticipant(t, store, newParticipant("p-4", base.Add(3*time.Second)))

	candidates, err := store.ListSLACandidates(ctx)
	if err != nil {
		t.Fatalf("ListSLACandidates failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(candidates), candidates)
	}
	if candidates[0].ParticipantID != "p-1" || candidates[1].ParticipantID != "p-4" {
		t.Fatalf("expected admission order p-1, p-4; got %+v", candidates)
	}

	c := candidates[0]
	if c.StepID != "intake" || c.SLADurationMinutes != 60 || c.SLAWarningMinutes != 15 {
		t.Fatalf("candidate policy mismatch: %+v", c)
	}
	if c.SLAAction != api.SLAActionNotify {
		t.Fatalf("expected NOTIFY action, got %q", c.SLAAction)
	}
	if !c.EnteredStepAt.Equal(base) {
		t.Fatalf("ledger-less candidate must fall back to creation time, got %v", c.EnteredStepAt)
	}
}

func testSLACandidateUsesLatestApproval(t *testing.T, store fullStore) {
	ctx := context.Background()
	mustSaveSnapshot(t, store, reviewSnapshot())

	base := time.Now().Truncate(time.Millisecond)
	mustCreateParticipant(t, store, newParticipant("p-1", base))

	older := base.Add(10 * time.Minute)
	newer := base.Add(30 * time.Minute)
	for i, at := range []time.Time{older, newer} {
		row := &api.Approval{
			ID:            fmt.Sprintf("a-%d", i+1),
			ParticipantID: "p-1",
			StepID:        "intake",
			UserID:        "alice",
			Action:        api.ActionApprove,
			CreatedAt:     at,
		}
		if err := store.AppendApproval(ctx, row); err != nil {
			t.Fatalf("AppendApproval failed: %v", err)
		}
	}

	candidates, err := store.ListSLACandidates(ctx)
	if err != nil {
		t.Fatalf("ListSLACandidates failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if !candidates[0].EnteredStepAt.Equal(newer) {
		t.Fatalf("expected entered-at %v (latest approval), got %v", newer, candidates[0].EnteredStepAt)
	}
}

func testApprovalLedger(t *testing.T, store fullStore) {
	ctx := context.Background()

	if _, err := store.LatestApproval(ctx, "p-1"); !errors.Is(err, ErrNoApprovals) {
		t.Fatalf("expected ErrNoApprovals, got %v", err)
	}

	base := time.Now().Truncate(time.Millisecond)
	rows := []api.Approval{
		{ID: "a-1", ParticipantID: "p-1", StepID: "intake", UserID: "alice", Action: api.ActionApprove, Remarks: "ok", CreatedAt: base},
		{ID: "a-2", ParticipantID: "p-1", StepID: "security", UserID: "bob", Action: api.ActionReject, CreatedAt: base.Add(time.Minute)},
		{ID: "a-3", ParticipantID: "p-2", StepID: "intake", UserID: "carol", Action: api.ActionBypass, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range rows {
		if err := store.AppendApproval(ctx, &rows[i]); err != nil {
			t.Fatalf("AppendApproval failed: %v", err)
		}
	}

	latest, err := store.LatestApproval(ctx, "p-1")
	if err != nil {
		t.Fatalf("LatestApproval failed: %v", err)
	}
	if latest.ID != "a-2" || latest.StepID != "security" || latest.Action != api.ActionReject {
		t.Fatalf("latest approval mismatch: %+v", latest)
	}

	list, err := store.ListApprovals(ctx, "p-1")
	if err != nil {
		t.Fatalf("ListApprovals failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rows for p-1, got %d", len(list))
	}
	if list[0].ID != "a-1" || list[1].ID != "a-2" {
		t.Fatalf("expected append order, got %+v", list)
	}
	if list[0].Remarks != "ok" || list[0].UserID != "alice" {
		t.Fatalf("row fields mismatch: %+v", list[0])
	}
}

// runStoreSuite runs every shared behavior against a fresh store per test.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) fullStore) {
	tests := []struct {
		name string
		fn   func(*testing.T, fullStore)
	}{
		{"SnapshotRoundtrip", testSnapshotRoundtrip},
		{"SnapshotImmutable", testSnapshotImmutable},
		{"SnapshotNotFound", testSnapshotNotFound},
		{"ParticipantRoundtrip", testParticipantRoundtrip},
		{"UnconditionalUpdate", testUnconditionalUpdate},
		{"ConditionalUpdate", testConditionalUpdate},
		{"SoftDelete", testSoftDelete},
		{"SLACandidates", testSLACandidates},
		{"SLACandidateUsesLatestApproval", testSLACandidateUsesLatestApproval},
		{"ApprovalLedger", testApprovalLedger},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

package stepgate

import (
	"fmt"

	"github.com/accredia/stepgate/pkg/api"
)

// SnapshotBuilder provides a fluent API for assembling workflow snapshots:
//
//	snap, err := stepgate.NewSnapshot("visitor-accreditation", 1).
//	    Entry(stepgate.Step{ID: "registration", NextStepID: "security"}).
//	    Step(stepgate.Step{ID: "security", NextStepID: "badge", RejectionTargetID: "registration"}).
//	    Final(stepgate.Step{ID: "badge"}).
//	    Build()
//
//	if err := eng.RegisterSnapshot(ctx, snap); err != nil {
//	    log.Fatal(err)
//	}
//
// Build validates that the graph is closed and has exactly one entry
// point; it does not reject cycles, which are legitimate rework loops.
type SnapshotBuilder struct {
	snap api.WorkflowSnapshot
	err  error
}

// NewSnapshot creates a builder for a snapshot with the given name and
// version. The snapshot ID defaults to "<name>-v<version>" and can be
// overridden with ID.
func NewSnapshot(name string, version int) *SnapshotBuilder {
	return &SnapshotBuilder{
		snap: api.WorkflowSnapshot{
			ID:      fmt.Sprintf("%s-v%d", name, version),
			Name:    name,
			Version: version,
		},
	}
}

// ID overrides the snapshot's ID.
func (b *SnapshotBuilder) ID(id string) *SnapshotBuilder {
	b.snap.ID = id
	return b
}

// Step appends a step. SortOrder defaults to the step's position.
func (b *SnapshotBuilder) Step(step Step) *SnapshotBuilder {
	if step.ID == "" {
		b.fail(fmt.Errorf("step %d has no ID", len(b.snap.Steps)))
		return b
	}
	if step.SortOrder == 0 {
		step.SortOrder = len(b.snap.Steps)
	}
	b.snap.Steps = append(b.snap.Steps, step)
	return b
}

// Entry appends a step marked as the snapshot's entry point.
func (b *SnapshotBuilder) Entry(step Step) *SnapshotBuilder {
	step.IsEntryPoint = true
	return b.Step(step)
}

// Final appends a step marked as terminal.
func (b *SnapshotBuilder) Final(step Step) *SnapshotBuilder {
	step.IsFinalStep = true
	return b.Step(step)
}

func (b *SnapshotBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build validates and returns the snapshot.
func (b *SnapshotBuilder) Build() (WorkflowSnapshot, error) {
	if b.err != nil {
		return WorkflowSnapshot{}, b.err
	}
	if err := b.snap.Validate(); err != nil {
		return WorkflowSnapshot{}, err
	}
	return b.snap, nil
}

// MustBuild is like Build but panics on error. Intended for tests and
// static snapshot definitions.
func (b *SnapshotBuilder) MustBuild() WorkflowSnapshot {
	snap, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("stepgate: invalid snapshot: %v", err))
	}
	return snap
}

// Package api contains the core building blocks of the stepgate workflow
// navigation engine: the snapshot and participant domain types, the closed
// action vocabularies, the error taxonomy, and the sink interfaces used for
// audit and notification side effects.
//
// Most users interact with the higher-level stepgate package, which
// re-exports selected types and helpers from this package. The api package
// is intended for custom integrations or contributors extending the engine
// itself.
//
// # Snapshots
//
// A WorkflowSnapshot is an immutable, versioned step graph. Participants
// bind to exactly one snapshot when they are admitted and keep traversing
// it for their lifetime, so live edits to a workflow definition never
// change the shape of an in-flight journey. Editing always mints a new
// snapshot under a new ID.
//
// The graph is a general directed graph: rejection, return and escalation
// edges intentionally loop back to earlier steps, so cycles are a feature,
// not an error. The graph is closed, though: every configured target must
// resolve to a step within the same snapshot.
//
// # Participants and Approvals
//
// A Participant records where a subject currently is (CurrentStepID), its
// lifecycle Status, and an optimistic version stamp (UpdatedAt). Every
// successful transition appends exactly one Approval ledger row; the
// latest row per participant drives both RETURN resolution and SLA
// time-in-step computation.
//
// # Errors
//
// The engine fails with one of three types: NotFoundError (missing or
// stale reference), InvalidTransitionError (no configured target for the
// requested action) and ConflictError (optimistic version mismatch). Only
// conflicts are worth retrying after a fresh read; the IsNotFound,
// IsInvalidTransition and IsConflict helpers classify an error chain.
//
// # Sinks
//
// AuditSink and Notifier are the passive recipients of transition side
// effects. Ready-made Noop, Logging and Composite implementations are
// provided; production deployments plug in their own.
package api

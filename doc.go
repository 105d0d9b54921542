// Package stepgate drives participants through configurable, versioned
// approval workflows and autonomously enforces per-step time budgets.
//
// Stepgate is the navigation core of an accreditation platform: a
// participant (a visitor, delegate, or crew member awaiting a badge) is
// admitted into an immutable snapshot of a workflow definition and moves
// through its step graph one human or system decision at a time. It runs
// fully in Go, supports multiple persistence backends, and integrates
// cleanly into existing backends.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. WorkflowSnapshot
//  2. Participant
//  3. Engine
//  4. Sweeper
//  5. SnapshotBuilder
//
// # WorkflowSnapshot
//
// A snapshot is a frozen, versioned step graph. Each step names up to four
// outbound targets (forward, reject, bypass, escalate); rejection and
// return edges loop back, so the graph is cyclic. Once any participant is
// bound to a snapshot it is never edited again: changes to the live
// workflow design always produce a new snapshot, and in-flight
// participants keep traversing the graph shape they entered with.
//
// # Engine
//
// The Engine resolves actions against a participant's current step,
// applies the guarded state update, and appends one approval ledger row
// plus one audit entry per transition. Concurrent human actions on the
// same participant race on an optimistic version stamp: the first
// committed write wins and the loser fails with a ConflictError it can
// retry after re-reading.
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//
// # Sweeper
//
// The Sweeper periodically asks the Engine to classify every active
// SLA-bearing participant: breached participants get their configured
// automatic action (notify, escalate, auto-approve, auto-reject) applied
// under the reserved SYSTEM actor, through the same transition path as
// human decisions. One participant's failure never starves enforcement
// for the rest of the population.
//
// # SnapshotBuilder
//
// SnapshotBuilder provides the ergonomic, declarative API used to define
// snapshots in code and tests; see its documentation for an example.
package stepgate

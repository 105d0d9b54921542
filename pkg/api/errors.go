package api

import (
	"errors"
	"fmt"
)

// The engine reports failures through three distinct types so callers can
// react per class: NotFoundError and InvalidTransitionError are terminal
// for the request, while ConflictError means "state changed underneath
// you, reload and retry".

// NotFoundError indicates a missing or stale reference: the participant,
// its bound snapshot, or its current step within that snapshot.
type NotFoundError struct {
	Kind string // "participant", "snapshot" or "step"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError builds a NotFoundError for the given reference kind.
func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidTransitionError indicates the current step has no configured
// target for the requested action. No state was changed and no ledger row
// was written.
type InvalidTransitionError struct {
	StepID string
	Action Action
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition: action %s on step %s: %s", e.Action, e.StepID, e.Reason)
	}
	return fmt.Sprintf("invalid transition: no target configured for action %s on step %s", e.Action, e.StepID)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}

// ConflictError indicates an optimistic version mismatch: another write
// committed between the caller's read and this update. The participant's
// state is untouched by the losing write.
type ConflictError struct {
	ParticipantID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: participant %s was modified concurrently", e.ParticipantID)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

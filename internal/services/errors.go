// Package services defines the business logic of the vote lifecycle engine.
// This file centralizes service-level error values.
//
// Every specific error wraps one of the kind sentinels below, so callers can
// branch on the category with errors.Is (errors.Is(err, ErrConflict)) and
// still show the specific reason (err.Error() == "already voted"). Mapping to
// HTTP status codes happens in the handler layer.
package services

import "errors"

// Error kinds.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTransient       = errors.New("temporarily unavailable")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

// Vote and response errors.
var (
	// ErrVoteNotFound indicates that the vote does not exist or is not
	// accessible to the current user.
	ErrVoteNotFound = newError(ErrNotFound, "vote not found")

	// ErrVoteClosed is returned when responding to a CLOSED vote.
	ErrVoteClosed = newError(ErrInvalidState, "vote closed")

	// ErrDeadlinePassed is returned when responding to an OPEN vote after its
	// last day, before the sweep closed it.
	ErrDeadlinePassed = newError(ErrInvalidState, "deadline passed")

	// ErrOptionNotInVote is returned when the option belongs to another vote
	// or does not exist.
	ErrOptionNotInVote = newError(ErrInvalidArgument, "option not in vote")

	// ErrAlreadyVoted is returned for a second response by the same user.
	ErrAlreadyVoted = newError(ErrConflict, "already voted")

	ErrEmptyQuestion        = newError(ErrInvalidArgument, "question is empty")
	ErrEmptyCategory        = newError(ErrInvalidArgument, "category is empty")
	ErrTooFewOptions        = newError(ErrInvalidArgument, "at least two options are required")
	ErrTooManyOptions       = newError(ErrInvalidArgument, "too many options")
	ErrDuplicateOption      = newError(ErrInvalidArgument, "options must be distinct")
	ErrTooLong              = newError(ErrInvalidArgument, "text too long")
	ErrInvalidClosureType   = newError(ErrInvalidArgument, "unknown closure type")
	ErrFinishedAtRequired   = newError(ErrInvalidArgument, "finished_at is required for CUSTOM_DAYS")
	ErrFinishedAtNotAllowed = newError(ErrInvalidArgument, "finished_at is only accepted for CUSTOM_DAYS and PARTICIPANT_COUNT")
	ErrFinishedAtInPast     = newError(ErrInvalidArgument, "finished_at is in the past")
	ErrThresholdRequired    = newError(ErrInvalidArgument, "participant_threshold must be at least 1 for PARTICIPANT_COUNT")
	ErrThresholdNotAllowed  = newError(ErrInvalidArgument, "participant_threshold is only accepted for PARTICIPANT_COUNT")
)

// Guide and revote errors.
var (
	ErrGuideNotFound  = newError(ErrNotFound, "guide not found")
	ErrRevoteNotFound = newError(ErrNotFound, "revote request not found")
	ErrRevoteExists   = newError(ErrConflict, "revote already requested")
	ErrRevoteResolved = newError(ErrInvalidState, "revote request already resolved")
	ErrEmptyReason    = newError(ErrInvalidArgument, "reason is empty")
)

// AI errors.
var (
	// ErrQuotaExhausted is returned once a user used up today's AI calls.
	ErrQuotaExhausted = newError(ErrQuotaExceeded, "daily AI quota exhausted")

	// ErrAIUnavailable wraps generator failures and timeouts.
	ErrAIUnavailable = newError(ErrTransient, "AI service unavailable")
)

// Identity errors.
var (
	ErrNoIdentity = newError(ErrUnauthorized, "authentication required")
	ErrAdminOnly  = newError(ErrForbidden, "admin role required")
)

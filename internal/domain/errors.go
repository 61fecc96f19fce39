package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
	ErrContextDone   = errors.New("context cancelled")

	// Strategy precondition errors.
	ErrInvalidContext         = errors.New("invalid resolution context")
	ErrSourceUnreachable      = errors.New("source unreachable")
	ErrInsufficientSignatures = errors.New("insufficient valid signatures")

	// State-machine precondition errors. These are never swallowed: a caller
	// retrying propose/challenge/finalize after a state change must see them.
	ErrNotChallengeable = errors.New("request is not challengeable")
	ErrWindowExpired    = errors.New("challenge window has expired")
	ErrWindowActive     = errors.New("challenge window is still active")
	ErrDisputeOpen      = errors.New("request already has an open dispute")
	ErrDisputeClosed    = errors.New("dispute is already resolved")
	ErrMarketResolved   = errors.New("market is already resolved")
)

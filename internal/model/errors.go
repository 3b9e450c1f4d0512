// Package model holds the persisted types shared by the code store, the
// vote ledger and the provenance importer, plus the sentinel errors those
// services surface. Handlers match on the sentinels with errors.Is and never
// inspect storage-engine error codes.
package model

import "errors"

var (
	// ErrNotFound is returned when an operation references a code id or
	// token that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCode is returned by direct creation when the code token
	// (or, when present, the source id) is already taken. The importer
	// absorbs this into a SkippedDuplicate outcome.
	ErrDuplicateCode = errors.New("duplicate code")

	// ErrInvalidVoteType is returned for vote types outside {upvote, downvote}.
	ErrInvalidVoteType = errors.New("invalid vote type")

	// ErrInvalidStatus is returned for statuses outside {active, expired, unknown}.
	ErrInvalidStatus = errors.New("invalid status")
)

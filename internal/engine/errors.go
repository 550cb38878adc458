// Package engine implements the round and tournament scoring core: round
// creation and roster management, score submission with authorization,
// auto-completion, achievement/personal-best derivation, and tournament
// lifecycle with the cross-group leaderboard.
//
// Every operation takes the caller's *gorm.DB, which is expected to be the
// per-request transaction (handlers open it with db.Transaction). The engine
// never commits or rolls back itself — all intermediate writes stay invisible
// until the surrounding transaction commits, and any returned error rolls the
// whole request back.
package engine

import "errors"

// Kind classifies an engine failure so the HTTP layer can map it to a status
// code without parsing message strings.
type Kind int

const (
	// KindNotFound: the referenced entity does not exist (or is archived).
	KindNotFound Kind = iota + 1
	// KindForbidden: the caller is authenticated but not allowed to do this.
	KindForbidden
	// KindConflict: the operation would violate an invariant (duplicate active
	// round, full roster, stale tournament state, unique-constraint collision).
	KindConflict
	// KindInvalid: a malformed or out-of-domain input value.
	KindInvalid
)

// Error is the engine's failure type: a stable kind plus a short human-readable
// detail. The detail is what API clients see in the error body, so it is written
// for end users ("you already have an active round"), not for operators.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string { return e.Detail }

// NotFound returns a KindNotFound error with the given detail.
func NotFound(detail string) error { return &Error{Kind: KindNotFound, Detail: detail} }

// Forbidden returns a KindForbidden error with the given detail.
func Forbidden(detail string) error { return &Error{Kind: KindForbidden, Detail: detail} }

// Conflict returns a KindConflict error with the given detail.
func Conflict(detail string) error { return &Error{Kind: KindConflict, Detail: detail} }

// Invalid returns a KindInvalid error with the given detail.
func Invalid(detail string) error { return &Error{Kind: KindInvalid, Detail: detail} }

// KindOf extracts the Kind from an error, or 0 when the error did not come from
// the engine (a raw store or programming error, which handlers treat as 500).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

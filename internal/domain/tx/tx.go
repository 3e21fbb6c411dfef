// Package tx defines the unit-of-work boundary shared by all storage
// operations that must commit or abort together.
package tx

import "context"

// Scope is a single atomic unit of work. Every storage operation that
// receives the same Scope is committed or rolled back as one.
//
// Abort is safe to call after Commit; implementations treat it as a no-op
// so callers can unconditionally defer it.
type Scope interface {
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Manager creates transaction scopes bound to the underlying data store.
type Manager interface {
	Begin(ctx context.Context) (Scope, error)
}

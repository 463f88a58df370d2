// Package identity resolves and carries the per-request principal.
package identity

import (
	"context"

	"github.com/rootedapp/portal/internal/reqscope"
)

// Identity is the resolved principal for one request. Anonymous is a valid,
// explicit state: the identity stage always binds a value, so downstream code
// reading the cell unconditionally never observes "unset" in a correct pipeline.
type Identity struct {
	UserID      string
	Email       string
	PhoneNumber string
	Verified    bool
	Superuser   bool
	Admin       bool
	Anonymous   bool
}

// Anonymous is the explicit unauthenticated principal.
func Anonymous() Identity {
	return Identity{Anonymous: true}
}

var identityCell = reqscope.NewCell[Identity]("identity")

// Token restores the identity cell on stage exit.
type Token = reqscope.Token[Identity]

// Bind publishes the principal for the current request.
func Bind(ctx context.Context, id Identity) (context.Context, Token) {
	return identityCell.Bind(ctx, id)
}

// Reset clears the binding.
func Reset(tok Token) {
	identityCell.Reset(tok)
}

// FromContext returns the principal bound for ctx. A CELL_ABSENT error here
// means the identity stage did not run, which is a pipeline ordering bug.
func FromContext(ctx context.Context) (Identity, error) {
	return identityCell.Get(ctx)
}

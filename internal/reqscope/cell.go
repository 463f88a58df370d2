// Package reqscope provides request-scoped value cells and the per-request
// metadata snapshot. A cell is the Go rendition of a coroutine-local variable:
// values are carried by the request's context chain, so they are visible at
// any call depth within one request and invisible to every other concurrently
// running request.
package reqscope

import (
	"context"
	"sync"

	"github.com/rootedapp/portal/internal/errors"
)

// cellKey is a unique context key per cell instance.
type cellKey struct{ name string }

// holder is the mutable per-request slot a cell binds into. Keeping the slot
// mutable (rather than relying on context immutability alone) lets the
// lifecycle stage revoke a binding on cleanup even for contexts captured by
// downstream code.
type holder[T any] struct {
	mu    sync.Mutex
	value T
	set   bool
}

// Token records the state a Bind replaced so Reset can restore it exactly.
type Token[T any] struct {
	h         *holder[T]
	prevValue T
	prevSet   bool
}

// Cell is a typed request-scoped slot. Construct once at package level and
// share; the per-request state lives in the context, not in the cell.
type Cell[T any] struct {
	name string
	key  *cellKey
}

// NewCell creates a cell. The name appears in AbsentError messages only.
func NewCell[T any](name string) *Cell[T] {
	return &Cell[T]{name: name, key: &cellKey{name: name}}
}

// Name returns the cell's diagnostic name.
func (c *Cell[T]) Name() string { return c.name }

// Bind publishes v for the request owning ctx and returns the context to pass
// downstream plus a token that restores the prior state. Binding over an
// existing binding (a nested override) reuses the request's slot, so the
// returned context equals ctx and Reset restores the outer value.
func (c *Cell[T]) Bind(ctx context.Context, v T) (context.Context, Token[T]) {
	if h, ok := ctx.Value(c.key).(*holder[T]); ok {
		h.mu.Lock()
		tok := Token[T]{h: h, prevValue: h.value, prevSet: h.set}
		h.value = v
		h.set = true
		h.mu.Unlock()
		return ctx, tok
	}

	h := &holder[T]{value: v, set: true}
	return context.WithValue(ctx, c.key, h), Token[T]{h: h}
}

// Get returns the value currently bound for the request owning ctx. Reading a
// cell that was never bound, or whose binding was already reset, yields a
// CELL_ABSENT error; an explicitly bound zero value does not.
func (c *Cell[T]) Get(ctx context.Context) (T, error) {
	var zero T
	h, ok := ctx.Value(c.key).(*holder[T])
	if !ok {
		return zero, errors.Absent(c.name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.set {
		return zero, errors.Absent(c.name)
	}
	return h.value, nil
}

// Reset restores the exact state captured by the token's Bind. After the
// outermost Reset, every context derived for this request reads the cell as
// absent again, including contexts captured before the reset.
func (c *Cell[T]) Reset(tok Token[T]) {
	if tok.h == nil {
		return
	}
	tok.h.mu.Lock()
	tok.h.value = tok.prevValue
	tok.h.set = tok.prevSet
	tok.h.mu.Unlock()
}

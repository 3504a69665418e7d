// Package auth provides the principal and capability types used to authorize
// mutating operations against the banyan core. Each component holds a Gate
// naming the single principal allowed to mutate it; callers identify
// themselves by embedding a Principal in the context.
package auth

import (
	"context"
	"sync"
)

// contextKey is an unexported type for context keys.
type contextKey int

const (
	principalContextKey contextKey = iota
)

// Principal represents the entity performing an action (an operator, a
// module, or another component). It can be stored in the context.
type Principal interface {
	// ID returns a unique identifier for the principal.
	ID() string
	// Type returns the kind of the principal (e.g. "operator", "module").
	Type() string
}

// PrincipalFromContext retrieves the Principal from the given context.
// Returns nil if no Principal is found.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalContextKey).(Principal); ok {
		return p
	}
	return nil
}

// ContextWithPrincipal returns a new context with the given Principal embedded.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// DefaultPrincipal is a simple implementation of Principal.
type DefaultPrincipal struct {
	id            string
	principalType string
}

// NewDefaultPrincipal creates a new DefaultPrincipal.
func NewDefaultPrincipal(id, principalType string) *DefaultPrincipal {
	return &DefaultPrincipal{id: id, principalType: principalType}
}

func (p *DefaultPrincipal) ID() string { return p.id }

func (p *DefaultPrincipal) Type() string { return p.principalType }

// Gate is a transferable capability guarding a component's mutating
// operations. A Gate names exactly one holder; Check succeeds only when the
// context principal matches it. The denial error is fixed at construction so
// each component reports its own authorization failure.
type Gate struct {
	mu     sync.RWMutex
	holder string
	denied error
}

// NewGate returns a Gate held by the given principal id. denied is the error
// returned by Check when the caller is not the holder.
func NewGate(holder string, denied error) *Gate {
	return &Gate{holder: holder, denied: denied}
}

// Check verifies that the context carries the holding principal.
func (g *Gate) Check(ctx context.Context) error {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return g.denied
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if p.ID() != g.holder {
		return g.denied
	}
	return nil
}

// Transfer hands the capability to a new holder.
func (g *Gate) Transfer(newHolder string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holder = newHolder
}

// Holder returns the id of the current holder.
func (g *Gate) Holder() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.holder
}

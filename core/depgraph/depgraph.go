// Package depgraph maintains the directed graph of inter-component
// dependencies. Edges are stored in both directions behind parity-maintained
// index maps so removal is O(1), and every mutation is appended to an
// immutable audit trail.
//
// Cycle rejection is deliberately local: only the immediate reverse edge is
// checked, so a transitive cycle of length three or more is accepted. This
// matches the behavior downstream components were built against and must not
// be silently strengthened.
package depgraph

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"banyan/core/auth"
	cerrors "banyan/core/errors"
	"banyan/core/events"
	"banyan/core/logger"
	"banyan/core/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ID is an opaque 32-byte component identifier. The graph assigns no meaning
// to its contents.
type ID [32]byte

// String renders the identifier as hex for logs and audit entries.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// AuditEntry records one accepted mutation. Entries are never modified or
// removed once appended.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	Op         string
	Dependent  ID
	Dependency ID
}

// Dependency graph event types.
const (
	DependencyRegisteredEventType = "depgraph.registered"
	DependencyRemovedEventType    = "depgraph.removed"
)

// DependencyRegisteredEvent is published when an edge is recorded.
type DependencyRegisteredEvent struct {
	Dependent  ID
	Dependency ID
}

func (e DependencyRegisteredEvent) EventType() string { return DependencyRegisteredEventType }

// DependencyRemovedEvent is published when an edge is removed.
type DependencyRemovedEvent struct {
	Dependent  ID
	Dependency ID
}

func (e DependencyRemovedEvent) EventType() string { return DependencyRemovedEventType }

// Graph owns the dependency edges. Mutations are admin-gated and
// all-or-nothing; both adjacency directions commit together under one lock.
type Graph struct {
	mu    sync.RWMutex
	gate  *auth.Gate
	bus   events.Bus
	deps  map[ID]*indexedSet // forward: dependent -> dependencies
	rdeps map[ID]*indexedSet // reverse: dependency -> dependents
	trail []AuditEntry
}

// New returns an empty Graph gated by the given admin capability. bus may be
// nil, in which case no events are published.
func New(gate *auth.Gate, bus events.Bus) *Graph {
	return &Graph{
		gate:  gate,
		bus:   bus,
		deps:  make(map[ID]*indexedSet),
		rdeps: make(map[ID]*indexedSet),
	}
}

// RegisterDependency records that dependent requires dependency. Self-edges
// and direct two-cycles are rejected at insertion time.
func (g *Graph) RegisterDependency(ctx context.Context, dependent, dependency ID) error {
	metrics.DependencyOpCounter.WithLabelValues("register", "attempt").Inc()
	if err := g.gate.Check(ctx); err != nil {
		metrics.DependencyOpCounter.WithLabelValues("register", "failed").Inc()
		return err
	}

	g.mu.Lock()
	err := func() error {
		if dependent == dependency {
			return fmt.Errorf("register %s -> %s: %w", dependent, dependency, cerrors.ErrSelfDependency)
		}
		if fwd, ok := g.deps[dependent]; ok && fwd.contains(dependency) {
			return fmt.Errorf("register %s -> %s: %w", dependent, dependency, cerrors.ErrDependencyExists)
		}
		// Only the immediate reverse edge is inspected here; longer cycles
		// pass through.
		if rev, ok := g.deps[dependency]; ok && rev.contains(dependent) {
			return fmt.Errorf("register %s -> %s: %w", dependent, dependency, cerrors.ErrCircularDependency)
		}
		g.forward(dependent).add(dependency)
		g.reverse(dependency).add(dependent)
		g.trail = append(g.trail, AuditEntry{
			ID:         uuid.NewString(),
			Timestamp:  time.Now(),
			Op:         "register",
			Dependent:  dependent,
			Dependency: dependency,
		})
		return nil
	}()
	g.mu.Unlock()

	if err != nil {
		metrics.DependencyOpCounter.WithLabelValues("register", "failed").Inc()
		return err
	}
	metrics.DependencyOpCounter.WithLabelValues("register", "success").Inc()
	logger.Info(ctx, "Dependency registered", zap.Stringer("dependent", dependent), zap.Stringer("dependency", dependency))
	if g.bus != nil {
		g.bus.Publish(ctx, DependencyRegisteredEventType, DependencyRegisteredEvent{Dependent: dependent, Dependency: dependency})
	}
	return nil
}

// RemoveDependency deletes the edge from both adjacency directions using
// swap-and-truncate removal; whichever element is moved into the vacated
// slot has its index entry repaired on each side independently.
func (g *Graph) RemoveDependency(ctx context.Context, dependent, dependency ID) error {
	metrics.DependencyOpCounter.WithLabelValues("remove", "attempt").Inc()
	if err := g.gate.Check(ctx); err != nil {
		metrics.DependencyOpCounter.WithLabelValues("remove", "failed").Inc()
		return err
	}

	g.mu.Lock()
	err := func() error {
		fwd, ok := g.deps[dependent]
		if !ok || !fwd.contains(dependency) {
			return fmt.Errorf("remove %s -> %s: %w", dependent, dependency, cerrors.ErrDependencyNotFound)
		}
		fwd.remove(dependency)
		g.rdeps[dependency].remove(dependent)
		if fwd.len() == 0 {
			delete(g.deps, dependent)
		}
		if g.rdeps[dependency].len() == 0 {
			delete(g.rdeps, dependency)
		}
		g.trail = append(g.trail, AuditEntry{
			ID:         uuid.NewString(),
			Timestamp:  time.Now(),
			Op:         "remove",
			Dependent:  dependent,
			Dependency: dependency,
		})
		return nil
	}()
	g.mu.Unlock()

	if err != nil {
		metrics.DependencyOpCounter.WithLabelValues("remove", "failed").Inc()
		return err
	}
	metrics.DependencyOpCounter.WithLabelValues("remove", "success").Inc()
	logger.Info(ctx, "Dependency removed", zap.Stringer("dependent", dependent), zap.Stringer("dependency", dependency))
	if g.bus != nil {
		g.bus.Publish(ctx, DependencyRemovedEventType, DependencyRemovedEvent{Dependent: dependent, Dependency: dependency})
	}
	return nil
}

// HasDependency reports whether the edge is recorded.
func (g *Graph) HasDependency(dependent, dependency ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fwd, ok := g.deps[dependent]
	return ok && fwd.contains(dependency)
}

// Dependencies returns a copy of the components the dependent requires.
func (g *Graph) Dependencies(dependent ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if fwd, ok := g.deps[dependent]; ok {
		return fwd.values()
	}
	return nil
}

// Dependents returns a copy of the components requiring the dependency.
func (g *Graph) Dependents(dependency ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if rev, ok := g.rdeps[dependency]; ok {
		return rev.values()
	}
	return nil
}

// HasAnyDependencies reports whether the component requires anything.
func (g *Graph) HasAnyDependencies(dependent ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fwd, ok := g.deps[dependent]
	return ok && fwd.len() > 0
}

// HasAnyDependents reports whether removing the component would orphan a
// dependent.
func (g *Graph) HasAnyDependents(dependency ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rev, ok := g.rdeps[dependency]
	return ok && rev.len() > 0
}

// AuditTrail returns a copy of all accepted mutations in order.
func (g *Graph) AuditTrail() []AuditEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]AuditEntry, len(g.trail))
	copy(out, g.trail)
	return out
}

func (g *Graph) forward(dependent ID) *indexedSet {
	s, ok := g.deps[dependent]
	if !ok {
		s = newIndexedSet()
		g.deps[dependent] = s
	}
	return s
}

func (g *Graph) reverse(dependency ID) *indexedSet {
	s, ok := g.rdeps[dependency]
	if !ok {
		s = newIndexedSet()
		g.rdeps[dependency] = s
	}
	return s
}

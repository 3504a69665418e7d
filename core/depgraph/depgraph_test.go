package depgraph

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"banyan/core/auth"
	cerrors "banyan/core/errors"
)

func adminCtx() context.Context {
	return auth.ContextWithPrincipal(context.Background(), auth.NewDefaultPrincipal("admin", "operator"))
}

func newTestGraph() *Graph {
	return New(auth.NewGate("admin", cerrors.ErrOnlyAdmin), nil)
}

func node(b byte) ID {
	var id ID
	id[0] = b
	return id
}

// checkParity asserts the core invariant: every index map entry equals the
// element's actual position in its list, on both adjacency directions.
func checkParity(t *testing.T, g *Graph) {
	t.Helper()
	for name, m := range map[string]map[ID]*indexedSet{"forward": g.deps, "reverse": g.rdeps} {
		for owner, set := range m {
			if len(set.items) != len(set.index) {
				t.Fatalf("%s list for %s: %d items but %d index entries", name, owner, len(set.items), len(set.index))
			}
			for pos, id := range set.items {
				got, ok := set.index[id]
				if !ok {
					t.Fatalf("%s list for %s: %s at position %d missing from index", name, owner, id, pos)
				}
				if got != pos {
					t.Fatalf("%s list for %s: index says %s is at %d, actually at %d", name, owner, id, got, pos)
				}
			}
		}
	}
}

func TestRegisterDependency_RejectsSelf(t *testing.T) {
	g := newTestGraph()
	x := node(1)
	if err := g.RegisterDependency(adminCtx(), x, x); !errors.Is(err, cerrors.ErrSelfDependency) {
		t.Fatalf("expected ErrSelfDependency, got %v", err)
	}
	if g.HasAnyDependencies(x) {
		t.Fatal("rejected edge must leave no trace")
	}
}

func TestRegisterDependency_RejectsDuplicate(t *testing.T) {
	g := newTestGraph()
	a, b := node(1), node(2)
	if err := g.RegisterDependency(adminCtx(), a, b); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := g.RegisterDependency(adminCtx(), a, b); !errors.Is(err, cerrors.ErrDependencyExists) {
		t.Fatalf("expected ErrDependencyExists, got %v", err)
	}
}

func TestRegisterDependency_RejectsDirectCycle(t *testing.T) {
	g := newTestGraph()
	a, b := node(1), node(2)
	if err := g.RegisterDependency(adminCtx(), a, b); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := g.RegisterDependency(adminCtx(), b, a); !errors.Is(err, cerrors.ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}
}

// The cycle check is local: only the immediate reverse edge is inspected, so
// a three-node cycle is accepted. This documents the existing behavior; do
// not strengthen it without auditing downstream expectations.
func TestRegisterDependency_AcceptsTransitiveCycle(t *testing.T) {
	g := newTestGraph()
	a, b, c := node(1), node(2), node(3)
	if err := g.RegisterDependency(adminCtx(), a, b); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if err := g.RegisterDependency(adminCtx(), b, c); err != nil {
		t.Fatalf("b->c: %v", err)
	}
	if err := g.RegisterDependency(adminCtx(), c, a); err != nil {
		t.Fatalf("c->a: expected 3-cycle to be accepted, got %v", err)
	}
	checkParity(t, g)
}

func TestRegisterDependency_RequiresAdmin(t *testing.T) {
	g := newTestGraph()
	a, b := node(1), node(2)
	ctx := auth.ContextWithPrincipal(context.Background(), auth.NewDefaultPrincipal("intruder", "operator"))
	if err := g.RegisterDependency(ctx, a, b); !errors.Is(err, cerrors.ErrOnlyAdmin) {
		t.Fatalf("expected ErrOnlyAdmin, got %v", err)
	}
	if err := g.RemoveDependency(context.Background(), a, b); !errors.Is(err, cerrors.ErrOnlyAdmin) {
		t.Fatalf("expected ErrOnlyAdmin, got %v", err)
	}
}

func TestRemoveDependency_NotFound(t *testing.T) {
	g := newTestGraph()
	if err := g.RemoveDependency(adminCtx(), node(1), node(2)); !errors.Is(err, cerrors.ErrDependencyNotFound) {
		t.Fatalf("expected ErrDependencyNotFound, got %v", err)
	}
}

func TestRemoveDependency_SwapAndTruncate(t *testing.T) {
	g := newTestGraph()
	x, a, b, c := node(10), node(1), node(2), node(3)
	for _, dep := range []ID{a, b, c} {
		if err := g.RegisterDependency(adminCtx(), x, dep); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := g.RemoveDependency(adminCtx(), x, b); err != nil {
		t.Fatalf("remove: %v", err)
	}
	checkParity(t, g)

	deps := g.Dependencies(x)
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(deps))
	}
	seen := map[ID]bool{}
	for _, d := range deps {
		seen[d] = true
	}
	if !seen[a] || !seen[c] || seen[b] {
		t.Fatalf("expected exactly {a, c}, got %v", deps)
	}
	for _, d := range []ID{a, c} {
		pos, ok := g.deps[x].position(d)
		if !ok || pos < 0 || pos >= len(g.deps[x].items) {
			t.Fatalf("index for %s is not a valid position: %d, %v", d, pos, ok)
		}
	}
	if g.HasDependency(x, b) {
		t.Fatal("removed edge still reported")
	}
}

func TestRemoveDependency_RepairsBothDirections(t *testing.T) {
	g := newTestGraph()
	// Three dependents of the same dependency exercise the reverse list's
	// swap-and-truncate path.
	d := node(9)
	x, y, z := node(1), node(2), node(3)
	for _, dep := range []ID{x, y, z} {
		if err := g.RegisterDependency(adminCtx(), dep, d); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := g.RemoveDependency(adminCtx(), x, d); err != nil {
		t.Fatalf("remove: %v", err)
	}
	checkParity(t, g)

	dependents := g.Dependents(d)
	if len(dependents) != 2 {
		t.Fatalf("expected 2 dependents, got %d", len(dependents))
	}
	if !g.HasDependency(y, d) || !g.HasDependency(z, d) {
		t.Fatal("surviving edges lost during removal")
	}
}

// TestIndexParity_Fuzz drives a deterministic random sequence of register
// and remove calls over a small node set and verifies parity and membership
// against a reference map after every call.
func TestIndexParity_Fuzz(t *testing.T) {
	g := newTestGraph()
	rng := rand.New(rand.NewSource(42))
	nodes := make([]ID, 8)
	for i := range nodes {
		nodes[i] = node(byte(i + 1))
	}

	type edge struct{ from, to ID }
	ref := map[edge]bool{}

	for i := 0; i < 2000; i++ {
		from := nodes[rng.Intn(len(nodes))]
		to := nodes[rng.Intn(len(nodes))]
		e := edge{from, to}
		if rng.Intn(2) == 0 {
			err := g.RegisterDependency(adminCtx(), from, to)
			switch {
			case from == to:
				if !errors.Is(err, cerrors.ErrSelfDependency) {
					t.Fatalf("op %d: expected ErrSelfDependency, got %v", i, err)
				}
			case ref[e]:
				if !errors.Is(err, cerrors.ErrDependencyExists) {
					t.Fatalf("op %d: expected ErrDependencyExists, got %v", i, err)
				}
			case ref[edge{to, from}]:
				if !errors.Is(err, cerrors.ErrCircularDependency) {
					t.Fatalf("op %d: expected ErrCircularDependency, got %v", i, err)
				}
			default:
				if err != nil {
					t.Fatalf("op %d: unexpected register error: %v", i, err)
				}
				ref[e] = true
			}
		} else {
			err := g.RemoveDependency(adminCtx(), from, to)
			if ref[e] {
				if err != nil {
					t.Fatalf("op %d: unexpected remove error: %v", i, err)
				}
				delete(ref, e)
			} else if !errors.Is(err, cerrors.ErrDependencyNotFound) {
				t.Fatalf("op %d: expected ErrDependencyNotFound, got %v", i, err)
			}
		}
		checkParity(t, g)
	}

	for e := range ref {
		if !g.HasDependency(e.from, e.to) {
			t.Fatalf("edge %v -> %v missing after fuzz", e.from, e.to)
		}
	}
}

func TestAuditTrail_RecordsAcceptedMutations(t *testing.T) {
	g := newTestGraph()
	a, b := node(1), node(2)
	if err := g.RegisterDependency(adminCtx(), a, b); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Rejected calls must not append to the trail.
	_ = g.RegisterDependency(adminCtx(), a, b)
	_ = g.RegisterDependency(adminCtx(), a, a)
	if err := g.RemoveDependency(adminCtx(), a, b); err != nil {
		t.Fatalf("remove: %v", err)
	}

	trail := g.AuditTrail()
	if len(trail) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(trail))
	}
	if trail[0].Op != "register" || trail[1].Op != "remove" {
		t.Fatalf("unexpected trail ops: %s, %s", trail[0].Op, trail[1].Op)
	}
	if trail[0].ID == "" || trail[0].ID == trail[1].ID {
		t.Fatal("audit entries must carry distinct ids")
	}
}

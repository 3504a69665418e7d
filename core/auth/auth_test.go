package auth_test

import (
	"context"
	"errors"
	"testing"

	"banyan/core/auth"
)

var errDenied = errors.New("denied")

func TestPrincipalContextRoundTrip(t *testing.T) {
	if p := auth.PrincipalFromContext(context.Background()); p != nil {
		t.Fatalf("expected nil principal from empty context, got %v", p)
	}
	ctx := auth.ContextWithPrincipal(context.Background(), auth.NewDefaultPrincipal("op-1", "operator"))
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		t.Fatal("expected principal in context")
	}
	if p.ID() != "op-1" || p.Type() != "operator" {
		t.Fatalf("unexpected principal: id=%s type=%s", p.ID(), p.Type())
	}
}

func TestGateCheck(t *testing.T) {
	g := auth.NewGate("holder", errDenied)

	if err := g.Check(context.Background()); !errors.Is(err, errDenied) {
		t.Fatalf("expected denial without principal, got %v", err)
	}

	wrong := auth.ContextWithPrincipal(context.Background(), auth.NewDefaultPrincipal("other", "operator"))
	if err := g.Check(wrong); !errors.Is(err, errDenied) {
		t.Fatalf("expected denial for wrong principal, got %v", err)
	}

	right := auth.ContextWithPrincipal(context.Background(), auth.NewDefaultPrincipal("holder", "operator"))
	if err := g.Check(right); err != nil {
		t.Fatalf("expected holder to pass, got %v", err)
	}
}

func TestGateTransfer(t *testing.T) {
	g := auth.NewGate("old", errDenied)
	g.Transfer("new")

	if g.Holder() != "new" {
		t.Fatalf("expected holder new, got %s", g.Holder())
	}
	oldCtx := auth.ContextWithPrincipal(context.Background(), auth.NewDefaultPrincipal("old", "operator"))
	if err := g.Check(oldCtx); !errors.Is(err, errDenied) {
		t.Fatalf("expected old holder to be denied after transfer, got %v", err)
	}
	newCtx := auth.ContextWithPrincipal(context.Background(), auth.NewDefaultPrincipal("new", "operator"))
	if err := g.Check(newCtx); err != nil {
		t.Fatalf("expected new holder to pass, got %v", err)
	}
}

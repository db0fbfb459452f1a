package static

import (
	"context"
	"errors"
	"testing"

	"github.com/strataplan/sessionguard/principal"
)

func TestCurrentSignedOut(t *testing.T) {
	p := New(nil)

	_, err := p.Current(context.Background())
	if !errors.Is(err, principal.ErrNoPrincipal) {
		t.Errorf("Current() error = %v, want ErrNoPrincipal", err)
	}
}

func TestSetAndClear(t *testing.T) {
	p := New(nil)
	p.SetPrincipal(&principal.Principal{ID: "owner-1", Email: "user@example.com"})

	got, err := p.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if got.ID != "owner-1" {
		t.Errorf("ID = %q, want owner-1", got.ID)
	}

	p.Clear()
	if _, err := p.Current(context.Background()); !errors.Is(err, principal.ErrNoPrincipal) {
		t.Errorf("Current() after Clear error = %v, want ErrNoPrincipal", err)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	p := New(&principal.Principal{ID: "owner-1"})

	first, _ := p.Current(context.Background())
	first.ID = "mutated"

	second, _ := p.Current(context.Background())
	if second.ID != "owner-1" {
		t.Error("Mutating a returned principal must not affect the stored one")
	}
}

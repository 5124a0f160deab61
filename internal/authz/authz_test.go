package authz_test

import (
	"errors"
	"testing"

	"github.com/ordinaut/ordinaut/internal/authz"
)

func TestRequireScope_ExactMatch(t *testing.T) {
	a := authz.Actor{AgentID: "a1", Scopes: []string{"task.create"}}
	if err := authz.RequireScope(a, "task.create"); err != nil {
		t.Fatalf("expected scope to satisfy requirement, got %v", err)
	}
}

func TestRequireScope_AdminSatisfiesAnyScope(t *testing.T) {
	a := authz.Actor{AgentID: "a1", Scopes: []string{authz.ScopeAdmin}}
	if err := authz.RequireScope(a, "task.delete"); err != nil {
		t.Fatalf("expected admin scope to satisfy any requirement, got %v", err)
	}
}

func TestRequireScope_MissingScopeIsForbidden(t *testing.T) {
	a := authz.Actor{AgentID: "a1", Scopes: []string{"task.create"}}
	err := authz.RequireScope(a, "task.delete")
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

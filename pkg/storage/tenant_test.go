package storage

import (
	"context"
	"testing"
)

func TestSetGetTenant(t *testing.T) {
	ctx := context.Background()

	// No tenant set: empty string.
	if got := GetTenant(ctx); got != "" {
		t.Errorf("GetTenant(empty ctx) = %q, want %q", got, "")
	}

	// Set tenant.
	ctx = SetTenant(ctx, "T1")
	if got := GetTenant(ctx); got != "T1" {
		t.Errorf("GetTenant = %q, want %q", got, "T1")
	}

	// Override tenant.
	ctx = SetTenant(ctx, "T2")
	if got := GetTenant(ctx); got != "T2" {
		t.Errorf("GetTenant = %q, want %q", got, "T2")
	}
}

func TestGetTenant_NoCollision(t *testing.T) {
	// Ensure the private key type prevents collisions.
	ctx := context.WithValue(context.Background(), "tenant", "wrong")
	if got := GetTenant(ctx); got != "" {
		t.Errorf("GetTenant should not match string key, got %q", got)
	}
}

package storage

import "context"

// tenantKey is a private type for the tenant context key, preventing
// collisions with other packages.
type tenantKey struct{}

// SetTenant injects a tenant identifier into the context. Membership
// lookups are restricted to this tenant.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenant extracts the tenant identifier from the context.
// Returns an empty string if no tenant is set.
func GetTenant(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey{}).(string); ok {
		return v
	}
	return ""
}

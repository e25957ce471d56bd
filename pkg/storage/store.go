package storage

import (
	"context"
	"time"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
)

// ClientRecord is a registered platform client together with the tenant it
// belongs to and the tenant's IAM and federated login credentials.
type ClientRecord struct {
	ClientID              string
	ClientSecret          string
	TenantID              string
	ClientIDIssuedAt      int64
	ClientSecretExpiresAt int64 // 0 means the secret never expires

	IAMClientID     string
	IAMClientSecret string

	FederatedClientID     string
	FederatedClientSecret string

	// Tier selects the rate limit applied to the client.
	Tier string
}

// Claim builds a credential claim from the record. The three credential
// spaces are copied field by field into their own slots.
func (r *ClientRecord) Claim() *api.CredentialClaim {
	return &api.CredentialClaim{
		TenantID:                      r.TenantID,
		IAMClientID:                   r.IAMClientID,
		IAMClientSecret:               r.IAMClientSecret,
		PlatformClientID:              r.ClientID,
		PlatformClientSecret:          r.ClientSecret,
		PlatformClientIDIssuedAt:      r.ClientIDIssuedAt,
		PlatformClientSecretExpiresAt: r.ClientSecretExpiresAt,
		FederatedClientID:             r.FederatedClientID,
		FederatedClientSecret:         r.FederatedClientSecret,
	}
}

// CredentialStore looks up platform clients by id.
type CredentialStore interface {
	// LookupClient returns the record for clientID, or ErrNotFound.
	LookupClient(ctx context.Context, clientID string) (*ClientRecord, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// ClientWriter registers or replaces client records.
type ClientWriter interface {
	PutClient(ctx context.Context, rec ClientRecord) error
}

// Membership links a user profile to a group with a membership type
// (for example OWNER, ADMIN or MEMBER).
type Membership struct {
	ID             string
	TenantID       string
	GroupID        string
	UserProfileID  string
	MembershipType string
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

// MembershipStore is a keyed lookup of group memberships. Every finder is
// restricted to the tenant set with SetTenant; a context without a tenant
// sees all tenants. Finders return an empty slice, not ErrNotFound, when
// nothing matches.
type MembershipStore interface {
	FindByGroup(ctx context.Context, groupID string) ([]Membership, error)
	FindByUserProfile(ctx context.Context, userProfileID string) ([]Membership, error)
	FindByGroupAndUser(ctx context.Context, groupID, userProfileID string) ([]Membership, error)
	FindByGroupUserAndType(ctx context.Context, groupID, userProfileID, membershipType string) ([]Membership, error)
	FindByGroupAndType(ctx context.Context, groupID, membershipType string) ([]Membership, error)

	// Save inserts a membership. It returns ErrConflict when the ID is taken.
	Save(ctx context.Context, m Membership) error
}

// MembershipFilter selects memberships. Empty fields match anything.
// Implementations share it to keep the five finders consistent.
type MembershipFilter struct {
	GroupID        string
	UserProfileID  string
	MembershipType string
}

// Matches reports whether m satisfies the filter.
func (f MembershipFilter) Matches(m Membership) bool {
	return (f.GroupID == "" || m.GroupID == f.GroupID) &&
		(f.UserProfileID == "" || m.UserProfileID == f.UserProfileID) &&
		(f.MembershipType == "" || m.MembershipType == f.MembershipType)
}

package usertoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/auth"
	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage"
)

// SessionSource reports the session bound to an access token.
// broker.Client satisfies it.
type SessionSource interface {
	IntrospectToken(ctx context.Context, req api.IntrospectRequest) (*api.TokenSession, error)
}

// Introspector validates opaque access tokens through the broker.
type Introspector struct {
	source SessionSource
	store  storage.CredentialStore
	now    func() time.Time
}

var _ auth.UserTokenValidator = (*Introspector)(nil)

// NewIntrospector creates a validator that introspects tokens with source
// and loads the bound client from store.
func NewIntrospector(source SessionSource, store storage.CredentialStore) *Introspector {
	return &Introspector{source: source, store: store, now: time.Now}
}

// ValidateUserToken returns a claim for the token's client carrying the
// session's username. Broker faults other than not_found and unauthorized
// are returned unchanged.
func (i *Introspector) ValidateUserToken(ctx context.Context, accessToken string) (*api.CredentialClaim, error) {
	session, err := i.source.IntrospectToken(ctx, api.IntrospectRequest{AccessToken: accessToken})
	if err != nil {
		if api.IsType(err, api.ErrorTypeNotFound) || api.IsType(err, api.ErrorTypeUnauthorized) {
			return nil, fmt.Errorf("%w: %v", auth.ErrInvalidUserToken, err)
		}
		return nil, err
	}
	if session == nil || !session.Active || session.Username == "" {
		return nil, fmt.Errorf("%w: inactive session", auth.ErrInvalidUserToken)
	}
	if session.ExpiresAt != 0 && i.now().Unix() >= session.ExpiresAt {
		return nil, fmt.Errorf("%w: session expired", auth.ErrInvalidUserToken)
	}

	claim, err := boundClaim(ctx, i.store, session.ClientID, session.TenantID)
	if err != nil {
		return nil, err
	}
	claim.Username = session.Username

	debug.Log("auth", "user token introspected", "claim", claim)
	return claim, nil
}

// boundClaim loads the client a user token was issued to. tenantID, when
// the token names one, must match the client's tenant.
func boundClaim(ctx context.Context, store storage.CredentialStore, clientID, tenantID string) (*api.CredentialClaim, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: token names no client", auth.ErrInvalidUserToken)
	}
	rec, err := store.LookupClient(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidUserToken, auth.ErrUnknownClient)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrCredentialBackend, err)
	}
	if tenantID != "" && tenantID != rec.TenantID {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidUserToken, auth.ErrTenantMismatch)
	}
	return rec.Claim(), nil
}

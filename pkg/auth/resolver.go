package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
	"github.com/ShivangMishra/veda-auth-central/pkg/observability"
)

// Resolution stages, used as the stage label of
// veda_resolution_failures_total.
const (
	StageHeader         = "header"
	StageClientMismatch = "client_mismatch"
	StageUserToken      = "user_token"
	StageTenantMismatch = "tenant_mismatch"
	StageRateLimit      = "rate_limit"
)

// UserTokenValidator resolves an end-user access token into a claim that
// carries Username. Implementations return an error wrapping
// ErrInvalidUserToken for unknown, inactive or expired tokens.
type UserTokenValidator interface {
	ValidateUserToken(ctx context.Context, accessToken string) (*api.CredentialClaim, error)
}

// UserSession is the result of resolving both the calling application and
// an end-user token.
type UserSession struct {
	// Application is the claim resolved from the request headers.
	Application *api.CredentialClaim
	// Username is the end user bound to the access token.
	Username string
	// TenantID is shared by the application and the user token.
	TenantID string
}

// Resolver turns inbound transport credentials into credential claims.
// It holds no per-call state and is safe for concurrent use.
type Resolver struct {
	chain   *AuthChain
	tokens  UserTokenValidator
	limiter RateLimiter
}

// NewResolver creates a resolver. tokens and limiter may be nil; without a
// token validator every user-token resolution fails.
func NewResolver(chain *AuthChain, tokens UserTokenValidator, limiter RateLimiter) *Resolver {
	return &Resolver{chain: chain, tokens: tokens, limiter: limiter}
}

// ResolveFromHeaders authenticates the calling application from its
// Authorization header.
func (r *Resolver) ResolveFromHeaders(ctx context.Context, h http.Header) (*api.CredentialClaim, error) {
	result := r.chain.Authenticate(ctx, h)
	if result.Decision != Yes || result.Claim == nil {
		return nil, reject(StageHeader, result.Err)
	}
	if err := result.Claim.Complete(); err != nil {
		slog.Error("authenticator returned incomplete claim", "error", err)
		return nil, reject(StageHeader, ErrIncompleteRecord)
	}

	if r.limiter != nil {
		if err := r.limiter.Allow(ctx, result.Claim.PlatformClientID, result.Tier); err != nil {
			tier := result.Tier
			if tier == "" {
				tier = DefaultTier
			}
			slog.Warn("rate limit exceeded", "client_id", result.Claim.PlatformClientID, "tier", tier)
			observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()
			return nil, api.NewTooManyRequestsError("rate limit exceeded")
		}
	}

	debug.Log("auth", "header credentials resolved", "claim", result.Claim)
	return result.Claim, nil
}

// ResolveFromHeadersForClient is ResolveFromHeaders with an additional
// check that the resolved platform client is expectedClientID.
func (r *Resolver) ResolveFromHeadersForClient(ctx context.Context, h http.Header, expectedClientID string) (*api.CredentialClaim, error) {
	claim, err := r.ResolveFromHeaders(ctx, h)
	if err != nil {
		return nil, err
	}
	if err := RequireClient(claim, expectedClientID); err != nil {
		return nil, err
	}
	return claim, nil
}

// RequireClient rejects a resolved claim whose platform client is not
// expectedClientID.
func RequireClient(claim *api.CredentialClaim, expectedClientID string) error {
	if subtle.ConstantTimeCompare([]byte(claim.PlatformClientID), []byte(expectedClientID)) != 1 {
		return reject(StageClientMismatch, ErrClientMismatch)
	}
	return nil
}

// ResolveFromUserToken validates an end-user access token. An empty token
// is rejected without consulting the validator.
func (r *Resolver) ResolveFromUserToken(ctx context.Context, accessToken string) (*api.CredentialClaim, error) {
	if accessToken == "" || r.tokens == nil {
		return nil, reject(StageUserToken, ErrInvalidUserToken)
	}
	claim, err := r.tokens.ValidateUserToken(ctx, accessToken)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Type != api.ErrorTypeUnauthorized {
			// Broker faults during validation are not credential failures.
			return nil, apiErr
		}
		return nil, reject(StageUserToken, err)
	}
	if claim == nil || claim.Username == "" || claim.TenantID == "" {
		return nil, reject(StageUserToken, ErrInvalidUserToken)
	}
	return claim, nil
}

// ResolveUserSession resolves the calling application from the headers and
// then the end-user token. The token step only runs when the header step
// succeeded. The username comes from the token, and the token's tenant must
// be the application's tenant.
func (r *Resolver) ResolveUserSession(ctx context.Context, h http.Header, accessToken string) (*UserSession, error) {
	pipeline := Then(
		func(ctx context.Context) (*api.CredentialClaim, error) {
			return r.ResolveFromHeaders(ctx, h)
		},
		func(ctx context.Context, app *api.CredentialClaim) (*UserSession, error) {
			user, err := r.ResolveFromUserToken(ctx, accessToken)
			if err != nil {
				return nil, err
			}
			if subtle.ConstantTimeCompare([]byte(user.TenantID), []byte(app.TenantID)) != 1 {
				return nil, reject(StageTenantMismatch, ErrTenantMismatch)
			}
			return &UserSession{
				Application: app,
				Username:    user.Username,
				TenantID:    app.TenantID,
			}, nil
		},
	)
	return pipeline(ctx)
}

// reject records a resolution failure and returns the caller-visible error.
// The cause is logged, never returned.
func reject(stage string, cause error) error {
	if cause == nil {
		cause = ErrUnauthenticated
	}
	observability.ResolutionFailuresTotal.WithLabelValues(stage).Inc()
	slog.Info("credential resolution rejected", "stage", stage, "reason", cause.Error())
	return api.NewUnauthorizedError()
}

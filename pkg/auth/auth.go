package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the claim is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

func (d AuthDecision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Claim    *api.CredentialClaim // populated only when Decision == Yes
	Tier     string               // rate limit tier of the resolved client
	Err      error                // populated only when Decision == No
}

// Authenticator examines inbound request headers and returns a
// three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, h http.Header) AuthResult
}

// Sentinel errors. They are logged and counted, never shown to callers;
// callers only ever see api.NewUnauthorizedError.
var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrMalformedHeader   = errors.New("malformed authorization header")
	ErrUnknownClient     = errors.New("unknown client")
	ErrSecretMismatch    = errors.New("client secret mismatch")
	ErrSecretExpired     = errors.New("client secret expired")
	ErrClientMismatch    = errors.New("resolved client does not match requested client")
	ErrTenantMismatch    = errors.New("user token tenant does not match application tenant")
	ErrInvalidUserToken  = errors.New("invalid user token")
	ErrIncompleteRecord  = errors.New("client record is incomplete")
	ErrCredentialBackend = errors.New("credential lookup failed")
	ErrTooManyRequests   = errors.New("rate limit exceeded")
)

// AuthChain evaluates authenticators in order using three-outcome voting.
// When every authenticator abstains the chain says No.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator
}

// NewAuthChain creates a chain over the given authenticators.
func NewAuthChain(authenticators ...Authenticator) *AuthChain {
	return &AuthChain{Authenticators: authenticators}
}

// Authenticate runs the chain. Stops on the first Yes or No.
func (c *AuthChain) Authenticate(ctx context.Context, h http.Header) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, h)
		if result.Decision != Abstain {
			return result
		}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}

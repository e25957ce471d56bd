package transport

import (
	"context"
	"net/http"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
)

// IdentityHandler handles the identity flows. Header-authenticated flows
// receive the raw request headers; public flows receive only their input.
// Every error is an *api.APIError.
type IdentityHandler interface {
	Authenticate(ctx context.Context, h http.Header, in api.AuthenticateInput) (*api.AuthToken, error)
	IsAuthenticated(ctx context.Context, h http.Header, in api.SessionInput) (bool, error)
	GetUser(ctx context.Context, h http.Header, in api.SessionInput) (*api.User, error)
	ServiceAccountToken(ctx context.Context, h http.Header, in api.ServiceAccountTokenInput) (*api.AuthToken, error)
	EndSession(ctx context.Context, h http.Header, in api.EndSessionInput) (bool, error)
	Authorize(ctx context.Context, in api.AuthorizeInput) (*api.AuthorizationResponse, error)
	Token(ctx context.Context, h http.Header, in api.TokenInput) (*api.TokenResponse, error)
	Credentials(ctx context.Context, h http.Header, in api.CredentialsInput) (*api.Credentials, error)
	OIDCConfiguration(ctx context.Context, in api.OIDCConfigurationInput) (*api.OIDCConfiguration, error)
}

// HealthChecker reports readiness of a dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck calls f(ctx).
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

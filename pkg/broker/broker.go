package broker

import (
	"context"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
)

// Operation names, used as URL paths on the broker and as the operation
// label of the upstream metrics.
const (
	OpAuthenticate        = "authenticate"
	OpIsAuthenticated     = "session_status"
	OpGetUser             = "user"
	OpServiceAccountToken = "service_account_token"
	OpEndSession          = "end_session"
	OpAuthorize           = "authorize"
	OpToken               = "token"
	OpCredentials         = "credentials"
	OpOIDCConfiguration   = "oidc_configuration"
	OpIntrospect          = "introspect"
)

// Broker executes identity operations. Every method returns either a payload
// or an *api.APIError; a not_found error means the broker found no matching
// tenant or credential.
type Broker interface {
	Authenticate(ctx context.Context, req api.AuthenticateRequest) (*api.AuthToken, error)
	IsAuthenticated(ctx context.Context, req api.SessionRequest) (*api.SessionStatus, error)
	GetUser(ctx context.Context, req api.SessionRequest) (*api.User, error)
	ServiceAccountToken(ctx context.Context, req api.ServiceAccountTokenRequest) (*api.AuthToken, error)
	EndSession(ctx context.Context, req api.EndSessionRequest) (*api.OperationStatus, error)
	Authorize(ctx context.Context, req api.AuthorizeRequest) (*api.AuthorizationResponse, error)
	Token(ctx context.Context, req api.TokenRequest) (*api.TokenResponse, error)
	Credentials(ctx context.Context, req api.CredentialsRequest) (*api.Credentials, error)
	OIDCConfiguration(ctx context.Context, req api.OIDCConfigurationRequest) (*api.OIDCConfiguration, error)
	IntrospectToken(ctx context.Context, req api.IntrospectRequest) (*api.TokenSession, error)
}

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	debugstack "runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/auth"
	"github.com/ShivangMishra/veda-auth-central/pkg/broker"
	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
	"github.com/ShivangMishra/veda-auth-central/pkg/mediator"
	"github.com/ShivangMishra/veda-auth-central/pkg/observability"
	"github.com/ShivangMishra/veda-auth-central/pkg/transport"
)

// Flow names, used in span names, metrics and logs.
const (
	FlowAuthenticate        = "authenticate"
	FlowSessionStatus       = "check_session_status"
	FlowGetUser             = "get_user_profile"
	FlowServiceAccountToken = "service_account_token"
	FlowEndSession          = "end_session"
	FlowAuthorize           = "authorize"
	FlowToken               = "token_exchange"
	FlowCredentials         = "get_stored_credentials"
	FlowOIDCConfiguration   = "oidc_discovery"
)

// Gateway orchestrates the identity flows. It holds no per-call state and
// is safe for concurrent use.
type Gateway struct {
	resolver *auth.Resolver
	broker   broker.Broker
	logger   *slog.Logger
}

var _ transport.IdentityHandler = (*Gateway)(nil)

// New creates a gateway that resolves credentials with resolver and
// dispatches to b.
func New(resolver *auth.Resolver, b broker.Broker, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{resolver: resolver, broker: b, logger: logger}
}

func (g *Gateway) Authenticate(ctx context.Context, h http.Header, in api.AuthenticateInput) (*api.AuthToken, error) {
	return run(ctx, g, FlowAuthenticate, func(ctx context.Context, c *call) (*api.AuthToken, error) {
		claim, err := g.resolver.ResolveFromHeaders(ctx, h)
		if err != nil {
			return nil, err
		}
		c.bind(claim)

		req, err := mediator.Authenticate(in, claim)
		if err != nil {
			return nil, err
		}
		resp, err := g.broker.Authenticate(ctx, req)
		return resp, upstream(err)
	})
}

func (g *Gateway) IsAuthenticated(ctx context.Context, h http.Header, in api.SessionInput) (bool, error) {
	return run(ctx, g, FlowSessionStatus, func(ctx context.Context, c *call) (bool, error) {
		req, err := g.sessionRequest(ctx, c, h, in.AccessToken)
		if err != nil {
			return false, err
		}
		resp, err := g.broker.IsAuthenticated(ctx, req)
		if err != nil {
			return false, upstream(err)
		}
		return resp.Authenticated, nil
	})
}

func (g *Gateway) GetUser(ctx context.Context, h http.Header, in api.SessionInput) (*api.User, error) {
	return run(ctx, g, FlowGetUser, func(ctx context.Context, c *call) (*api.User, error) {
		req, err := g.sessionRequest(ctx, c, h, in.AccessToken)
		if err != nil {
			return nil, err
		}
		resp, err := g.broker.GetUser(ctx, req)
		return resp, upstream(err)
	})
}

// sessionRequest runs the two-step resolution shared by the session flows.
func (g *Gateway) sessionRequest(ctx context.Context, c *call, h http.Header, accessToken string) (api.SessionRequest, error) {
	session, err := g.resolver.ResolveUserSession(ctx, h, accessToken)
	if err != nil {
		return api.SessionRequest{}, err
	}
	c.bind(session.Application)
	c.username = session.Username
	return mediator.Session(accessToken, session)
}

func (g *Gateway) ServiceAccountToken(ctx context.Context, h http.Header, _ api.ServiceAccountTokenInput) (*api.AuthToken, error) {
	return run(ctx, g, FlowServiceAccountToken, func(ctx context.Context, c *call) (*api.AuthToken, error) {
		claim, err := g.resolver.ResolveFromHeaders(ctx, h)
		if err != nil {
			return nil, err
		}
		c.bind(claim)

		resp, err := g.broker.ServiceAccountToken(ctx, mediator.ServiceAccountToken(claim))
		return resp, upstream(err)
	})
}

// EndSession validates the refresh token before resolving credentials.
func (g *Gateway) EndSession(ctx context.Context, h http.Header, in api.EndSessionInput) (bool, error) {
	return run(ctx, g, FlowEndSession, func(ctx context.Context, c *call) (bool, error) {
		if err := mediator.ValidateEndSession(in); err != nil {
			return false, err
		}
		claim, err := g.resolver.ResolveFromHeaders(ctx, h)
		if err != nil {
			return false, err
		}
		c.bind(claim)

		req, err := mediator.EndSession(in, claim)
		if err != nil {
			return false, err
		}
		resp, err := g.broker.EndSession(ctx, req)
		if err != nil {
			return false, upstream(err)
		}
		return resp.Status, nil
	})
}

func (g *Gateway) Authorize(ctx context.Context, in api.AuthorizeInput) (*api.AuthorizationResponse, error) {
	return run(ctx, g, FlowAuthorize, func(ctx context.Context, c *call) (*api.AuthorizationResponse, error) {
		req, err := mediator.Authorize(in)
		if err != nil {
			return nil, err
		}
		c.tenantID, c.clientID = req.TenantID, req.ClientID

		resp, err := g.broker.Authorize(ctx, req)
		return resp, upstream(err)
	})
}

func (g *Gateway) Token(ctx context.Context, h http.Header, in api.TokenInput) (*api.TokenResponse, error) {
	return run(ctx, g, FlowToken, func(ctx context.Context, c *call) (*api.TokenResponse, error) {
		claim, err := g.resolver.ResolveFromHeaders(ctx, h)
		if err != nil {
			return nil, err
		}
		c.bind(claim)

		req, err := mediator.Token(in, claim)
		if err != nil {
			return nil, err
		}
		resp, err := g.broker.Token(ctx, req)
		return resp, upstream(err)
	})
}

// Credentials returns the stored credentials of the calling client. The
// client_id parameter must name the client that authenticated. The header is
// resolved first, so a bad header is 401 whatever the parameters say.
func (g *Gateway) Credentials(ctx context.Context, h http.Header, in api.CredentialsInput) (*api.Credentials, error) {
	return run(ctx, g, FlowCredentials, func(ctx context.Context, c *call) (*api.Credentials, error) {
		claim, err := g.resolver.ResolveFromHeaders(ctx, h)
		if err != nil {
			return nil, err
		}
		if in.ClientID == "" {
			return nil, api.NewInvalidRequestError("client_id", "client_id is required")
		}
		if err := auth.RequireClient(claim, in.ClientID); err != nil {
			return nil, err
		}
		c.bind(claim)

		resp, err := g.broker.Credentials(ctx, mediator.Credentials(claim))
		return resp, upstream(err)
	})
}

func (g *Gateway) OIDCConfiguration(ctx context.Context, in api.OIDCConfigurationInput) (*api.OIDCConfiguration, error) {
	return run(ctx, g, FlowOIDCConfiguration, func(ctx context.Context, c *call) (*api.OIDCConfiguration, error) {
		req, err := mediator.OIDCConfiguration(in)
		if err != nil {
			return nil, err
		}
		c.clientID = req.ClientID

		resp, err := g.broker.OIDCConfiguration(ctx, req)
		return resp, upstream(err)
	})
}

// upstream passes broker faults through unchanged. Errors that are not
// *api.APIError become an opaque upstream fault.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewUpstreamError(0, "broker request failed")
}

// call carries the identifiers a flow learns while it runs, for logging and
// span attributes. It never holds secrets.
type call struct {
	flow     string
	tenantID string
	clientID string
	username string
}

func (c *call) bind(claim *api.CredentialClaim) {
	c.tenantID = claim.TenantID
	c.clientID = claim.PlatformClientID
}

// invoke calls fn, turning a panic into a server error so the flow is still
// logged and counted.
func invoke[T any](ctx context.Context, g *Gateway, c *call, fn func(context.Context, *call) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "flow panicked",
				"request_id", transport.RequestIDFromContext(ctx),
				"flow", c.flow,
				"panic", r,
				"stack", string(debugstack.Stack()),
			)
			err = api.NewServerError("internal server error")
		}
	}()
	return fn(ctx, c)
}

// run executes one flow inside a span and records its outcome.
func run[T any](ctx context.Context, g *Gateway, flow string, fn func(context.Context, *call) (T, error)) (T, error) {
	ctx, span := observability.Tracer().Start(ctx, "gateway."+flow, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	c := &call{flow: flow}
	result, err := invoke(ctx, g, c, fn)
	elapsed := time.Since(start)

	status := observability.StatusOK
	attrs := []slog.Attr{
		slog.String("request_id", transport.RequestIDFromContext(ctx)),
		slog.String("flow", flow),
		slog.String("tenant_id", c.tenantID),
		slog.String("client_id", c.clientID),
		slog.Duration("duration", elapsed),
	}
	span.SetAttributes(
		attribute.String("veda.flow", flow),
		attribute.String("veda.tenant_id", c.tenantID),
		attribute.String("veda.client_id", c.clientID),
	)

	if err != nil {
		apiErr := transport.AsAPIError(err)
		err = apiErr
		status = string(apiErr.Type)
		span.SetStatus(codes.Error, status)
		attrs = append(attrs, slog.String("error_type", status), slog.String("error", apiErr.Message))

		level := slog.LevelInfo
		if apiErr.HTTPStatus() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		g.logger.LogAttrs(ctx, level, "flow failed", attrs...)
	} else {
		if c.username != "" {
			debug.Log("gateway", "flow user", "flow", flow, "username", c.username)
		}
		g.logger.LogAttrs(ctx, slog.LevelInfo, "flow completed", attrs...)
	}

	observability.RequestsTotal.WithLabelValues(flow, status).Inc()
	observability.RequestDuration.WithLabelValues(flow).Observe(elapsed.Seconds())

	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

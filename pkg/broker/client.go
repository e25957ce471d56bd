package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
	"github.com/ShivangMishra/veda-auth-central/pkg/observability"
)

// DefaultTimeout bounds a single broker call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Config configures the broker client.
type Config struct {
	// URL is the broker base URL, e.g. https://broker.internal/api.
	URL string

	// Timeout bounds each call on top of the inbound request context.
	Timeout time.Duration

	// OAuth2 client credentials the gateway uses to authenticate to the
	// broker. Disabled when TokenURL is empty.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// HTTPClient is the base client. Defaults to a client with a pooled
	// transport.
	HTTPClient *http.Client
}

// Client calls the broker over HTTP with JSON bodies. Every operation is a
// POST to URL + "/" + operation name. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

var _ Broker = (*Client)(nil)

// NewClient creates a broker client. When cfg.TokenURL is set, outgoing
// requests carry a bearer token from the client credentials grant, fetched
// lazily and refreshed before it expires.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// The token source uses the base client for the token endpoint.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = cc.Client(ctx)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		timeout:    timeout,
	}
}

func (c *Client) Authenticate(ctx context.Context, req api.AuthenticateRequest) (*api.AuthToken, error) {
	return call[api.AuthToken](ctx, c, OpAuthenticate, req)
}

func (c *Client) IsAuthenticated(ctx context.Context, req api.SessionRequest) (*api.SessionStatus, error) {
	return call[api.SessionStatus](ctx, c, OpIsAuthenticated, req)
}

func (c *Client) GetUser(ctx context.Context, req api.SessionRequest) (*api.User, error) {
	return call[api.User](ctx, c, OpGetUser, req)
}

func (c *Client) ServiceAccountToken(ctx context.Context, req api.ServiceAccountTokenRequest) (*api.AuthToken, error) {
	return call[api.AuthToken](ctx, c, OpServiceAccountToken, req)
}

func (c *Client) EndSession(ctx context.Context, req api.EndSessionRequest) (*api.OperationStatus, error) {
	return call[api.OperationStatus](ctx, c, OpEndSession, req)
}

func (c *Client) Authorize(ctx context.Context, req api.AuthorizeRequest) (*api.AuthorizationResponse, error) {
	return call[api.AuthorizationResponse](ctx, c, OpAuthorize, req)
}

func (c *Client) Token(ctx context.Context, req api.TokenRequest) (*api.TokenResponse, error) {
	return call[api.TokenResponse](ctx, c, OpToken, req)
}

func (c *Client) Credentials(ctx context.Context, req api.CredentialsRequest) (*api.Credentials, error) {
	return call[api.Credentials](ctx, c, OpCredentials, req)
}

func (c *Client) OIDCConfiguration(ctx context.Context, req api.OIDCConfigurationRequest) (*api.OIDCConfiguration, error) {
	return call[api.OIDCConfiguration](ctx, c, OpOIDCConfiguration, req)
}

func (c *Client) IntrospectToken(ctx context.Context, req api.IntrospectRequest) (*api.TokenSession, error) {
	return call[api.TokenSession](ctx, c, OpIntrospect, req)
}

// HealthCheck reports whether the broker answers GET /healthz.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("broker health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broker health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// call posts body to the operation endpoint and decodes the response into T.
func call[T any](ctx context.Context, c *Client, op string, body any) (result *T, err error) {
	ctx, span := observability.Tracer().Start(ctx, "broker."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("veda.broker.operation", op)),
	)
	start := time.Now()
	defer func() {
		status := observability.StatusOK
		if err != nil {
			status = string(errorType(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		observability.UpstreamRequestsTotal.WithLabelValues(op, status).Inc()
		observability.UpstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(body)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal broker request: %s", err.Error()))
	}

	url := c.baseURL + "/" + op
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create broker request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	debug.Log("broker", "request", "operation", op, "url", url)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	span.SetAttributes(attribute.String("http.status_code", strconv.Itoa(httpResp.StatusCode)))
	debug.Log("broker", "response", "operation", op, "status", httpResp.StatusCode)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var out T
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, api.NewUpstreamError(0, fmt.Sprintf("failed to parse broker response: %s", err.Error()))
	}
	return &out, nil
}

func errorType(err error) api.ErrorType {
	if apiErr, ok := err.(*api.APIError); ok {
		return apiErr.Type
	}
	return api.ErrorTypeServerError
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/transport"
)

// Route paths below the configured base path.
const (
	PathAuthenticate        = "/identity-management/authenticate"
	PathSessionStatus       = "/identity-management/authenticate/status"
	PathUser                = "/identity-management/user"
	PathServiceAccountToken = "/identity-management/account/token"
	PathLogout              = "/identity-management/user/logout"
	PathAuthorize           = "/identity-management/authorize"
	PathToken               = "/identity-management/token"
	PathCredentials         = "/identity-management/credentials"
	PathOIDCConfiguration   = "/identity-management/.well-known/openid-configuration"
)

// readinessTimeout bounds a single /readyz request.
const readinessTimeout = 2 * time.Second

// Adapter serves the identity API over HTTP.
// It routes requests to the IdentityHandler and serializes responses.
type Adapter struct {
	handler transport.IdentityHandler
	checks  map[string]transport.HealthChecker
	router  chi.Router
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	BasePath        string // prefix for the identity routes, e.g. "/api/v1"
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	CORSOrigins     []string // empty disables CORS handling
	MetricsPath     string   // empty disables the metrics endpoint
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     1 << 20, // 1 MiB
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
	}
}

// NewAdapter creates an HTTP adapter for handler. checks are consulted by
// /readyz, keyed by a name reported on failure. Middleware wraps every
// route in the given order.
func NewAdapter(handler transport.IdentityHandler, cfg Config, checks map[string]transport.HealthChecker, middlewares ...transport.Middleware) *Adapter {
	a := &Adapter{
		handler: handler,
		checks:  checks,
		router:  chi.NewRouter(),
		config:  cfg,
	}

	for _, mw := range middlewares {
		a.router.Use(mw)
	}
	// Preflight requests must see CORS before routing rejects OPTIONS.
	if len(cfg.CORSOrigins) > 0 {
		a.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", transport.RequestIDHeader},
			ExposedHeaders:   []string{transport.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	a.router.Get("/healthz", a.handleHealthz)
	a.router.Get("/readyz", a.handleReadyz)
	if cfg.MetricsPath != "" {
		a.router.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	identity := func(r chi.Router) {
		r.Post(PathAuthenticate, a.handleAuthenticate)
		r.Post(PathSessionStatus, a.handleSessionStatus)
		r.Get(PathUser, a.handleGetUser)
		r.Get(PathServiceAccountToken, a.handleServiceAccountToken)
		r.Post(PathLogout, a.handleLogout)
		r.Get(PathAuthorize, a.handleAuthorize)
		r.Post(PathToken, a.handleToken)
		r.Get(PathCredentials, a.handleCredentials)
		r.Get(PathOIDCConfiguration, a.handleOIDCConfiguration)
	}
	if cfg.BasePath != "" {
		a.router.Route(cfg.BasePath, identity)
	} else {
		a.router.Group(identity)
	}

	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteAPIError(w, api.NewNotFoundError("no route for "+r.URL.Path))
	})
	a.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "method "+r.Method+" not allowed"),
			http.StatusMethodNotAllowed,
		)
	})

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

// handleAuthenticate handles POST /identity-management/authenticate.
func (a *Adapter) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeBody[api.AuthenticateInput](a, w, r)
	if !ok {
		return
	}
	token, err := a.handler.Authenticate(r.Context(), r.Header, in)
	respond(w, token, err)
}

// handleSessionStatus handles POST /identity-management/authenticate/status.
// The result is a bare JSON boolean.
func (a *Adapter) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeBody[api.SessionInput](a, w, r)
	if !ok {
		return
	}
	status, err := a.handler.IsAuthenticated(r.Context(), r.Header, in)
	respond(w, status, err)
}

// handleGetUser handles GET /identity-management/user.
func (a *Adapter) handleGetUser(w http.ResponseWriter, r *http.Request) {
	in := api.SessionInput{AccessToken: r.URL.Query().Get("access_token")}
	user, err := a.handler.GetUser(r.Context(), r.Header, in)
	respond(w, user, err)
}

// handleServiceAccountToken handles GET /identity-management/account/token.
func (a *Adapter) handleServiceAccountToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := api.ServiceAccountTokenInput{
		TenantID:     q.Get("tenant_id"),
		ClientID:     q.Get("client_id"),
		ClientSecret: q.Get("client_secret"),
	}
	token, err := a.handler.ServiceAccountToken(r.Context(), r.Header, in)
	respond(w, token, err)
}

// handleLogout handles POST /identity-management/user/logout.
// The result is a bare JSON boolean.
func (a *Adapter) handleLogout(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeBody[api.EndSessionInput](a, w, r)
	if !ok {
		return
	}
	status, err := a.handler.EndSession(r.Context(), r.Header, in)
	respond(w, status, err)
}

// handleAuthorize handles GET /identity-management/authorize. It is public.
func (a *Adapter) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := api.AuthorizeInput{
		ClientID:    q.Get("client_id"),
		RedirectURI: q.Get("redirect_uri"),
		TenantID:    q.Get("tenant_id"),
	}
	resp, err := a.handler.Authorize(r.Context(), in)
	respond(w, resp, err)
}

// handleToken handles POST /identity-management/token.
func (a *Adapter) handleToken(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeBody[api.TokenInput](a, w, r)
	if !ok {
		return
	}
	resp, err := a.handler.Token(r.Context(), r.Header, in)
	respond(w, resp, err)
}

// handleCredentials handles GET /identity-management/credentials.
func (a *Adapter) handleCredentials(w http.ResponseWriter, r *http.Request) {
	in := api.CredentialsInput{ClientID: r.URL.Query().Get("client_id")}
	creds, err := a.handler.Credentials(r.Context(), r.Header, in)
	respond(w, creds, err)
}

// handleOIDCConfiguration handles
// GET /identity-management/.well-known/openid-configuration. It is public.
func (a *Adapter) handleOIDCConfiguration(w http.ResponseWriter, r *http.Request) {
	in := api.OIDCConfigurationInput{ClientID: r.URL.Query().Get("client_id")}
	cfg, err := a.handler.OIDCConfiguration(r.Context(), in)
	respond(w, cfg, err)
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, map[string]string{"status": "ok"})
}

// handleReadyz runs every registered health check. Any failure turns the
// response into a 503 naming the failing dependencies.
func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range a.checks {
		if err := check.HealthCheck(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	transport.WriteJSON(w, map[string]string{"status": "ok"})
}

// decodeBody reads a JSON request body into T. An empty body decodes to
// the zero value; the flow then rejects missing fields itself. On failure
// the error response is already written and ok is false.
func decodeBody[T any](a *Adapter, w http.ResponseWriter, r *http.Request) (in T, ok bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return in, false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return in, false
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return in, false
	}
	return in, true
}

// respond writes v as JSON, or err as an error response.
func respond[T any](w http.ResponseWriter, v T, err error) {
	if err != nil {
		transport.WriteAPIError(w, err)
		return
	}
	transport.WriteJSON(w, v)
}

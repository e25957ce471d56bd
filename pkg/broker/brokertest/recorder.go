// Package brokertest provides broker doubles for tests and local
// development: Recorder, an in-memory broker.Broker that records every call,
// and Server, a deterministic fake broker speaking the client's HTTP
// protocol.
package brokertest

import (
	"context"
	"sync"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/broker"
)

// Recorder is a broker.Broker that records requests and returns canned
// responses. Sessions feeds IntrospectToken; Errs makes an operation fail.
type Recorder struct {
	mu       sync.Mutex
	calls    map[string]int
	requests map[string][]any

	// Errs maps an operation name to the error it returns.
	Errs map[string]error
	// Sessions maps access tokens to introspection results.
	Sessions map[string]*api.TokenSession
	// OIDC maps client ids to discovery metadata. Unknown clients are
	// not_found.
	OIDC map[string]*api.OIDCConfiguration
}

var _ broker.Broker = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		calls:    make(map[string]int),
		requests: make(map[string][]any),
		Errs:     make(map[string]error),
		Sessions: make(map[string]*api.TokenSession),
		OIDC:     make(map[string]*api.OIDCConfiguration),
	}
}

// Calls returns how often op was invoked.
func (r *Recorder) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// TotalCalls returns the number of calls across all operations except
// token introspection.
func (r *Recorder) TotalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for op, c := range r.calls {
		if op != broker.OpIntrospect {
			n += c
		}
	}
	return n
}

// Requests returns the requests recorded for op, oldest first.
func (r *Recorder) Requests(op string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.requests[op]...)
}

// Last returns the most recent request for op, or nil.
func (r *Recorder) Last(op string) any {
	reqs := r.Requests(op)
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

func (r *Recorder) record(op string, req any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
	r.requests[op] = append(r.requests[op], req)
	return r.Errs[op]
}

func (r *Recorder) Authenticate(_ context.Context, req api.AuthenticateRequest) (*api.AuthToken, error) {
	if err := r.record(broker.OpAuthenticate, req); err != nil {
		return nil, err
	}
	return &api.AuthToken{AccessToken: "at-" + req.Username, RefreshToken: "rt-" + req.Username, TokenType: "Bearer", ExpiresIn: 300}, nil
}

func (r *Recorder) IsAuthenticated(_ context.Context, req api.SessionRequest) (*api.SessionStatus, error) {
	if err := r.record(broker.OpIsAuthenticated, req); err != nil {
		return nil, err
	}
	return &api.SessionStatus{Authenticated: true}, nil
}

func (r *Recorder) GetUser(_ context.Context, req api.SessionRequest) (*api.User, error) {
	if err := r.record(broker.OpGetUser, req); err != nil {
		return nil, err
	}
	var username string
	for _, c := range req.Claims {
		if c.Key == "username" {
			username = c.Value
		}
	}
	return &api.User{Sub: "sub-" + username, Username: username}, nil
}

func (r *Recorder) ServiceAccountToken(_ context.Context, req api.ServiceAccountTokenRequest) (*api.AuthToken, error) {
	if err := r.record(broker.OpServiceAccountToken, req); err != nil {
		return nil, err
	}
	return &api.AuthToken{AccessToken: "sa-" + req.TenantID, TokenType: "Bearer"}, nil
}

func (r *Recorder) EndSession(_ context.Context, req api.EndSessionRequest) (*api.OperationStatus, error) {
	if err := r.record(broker.OpEndSession, req); err != nil {
		return nil, err
	}
	return &api.OperationStatus{Status: true}, nil
}

func (r *Recorder) Authorize(_ context.Context, req api.AuthorizeRequest) (*api.AuthorizationResponse, error) {
	if err := r.record(broker.OpAuthorize, req); err != nil {
		return nil, err
	}
	return &api.AuthorizationResponse{RedirectURI: req.RedirectURI, Code: "code-" + req.ClientID}, nil
}

func (r *Recorder) Token(_ context.Context, req api.TokenRequest) (*api.TokenResponse, error) {
	if err := r.record(broker.OpToken, req); err != nil {
		return nil, err
	}
	return &api.TokenResponse{AccessToken: "at-" + req.GrantType, TokenType: "Bearer", ExpiresIn: 300}, nil
}

func (r *Recorder) Credentials(_ context.Context, req api.CredentialsRequest) (*api.Credentials, error) {
	if err := r.record(broker.OpCredentials, req); err != nil {
		return nil, err
	}
	creds := req.Credentials
	return &creds, nil
}

func (r *Recorder) OIDCConfiguration(_ context.Context, req api.OIDCConfigurationRequest) (*api.OIDCConfiguration, error) {
	if err := r.record(broker.OpOIDCConfiguration, req); err != nil {
		return nil, err
	}
	r.mu.Lock()
	cfg, ok := r.OIDC[req.ClientID]
	r.mu.Unlock()
	if !ok {
		return nil, api.NewNotFoundError("no tenant for client")
	}
	return cfg, nil
}

func (r *Recorder) IntrospectToken(_ context.Context, req api.IntrospectRequest) (*api.TokenSession, error) {
	if err := r.record(broker.OpIntrospect, req); err != nil {
		return nil, err
	}
	r.mu.Lock()
	session, ok := r.Sessions[req.AccessToken]
	r.mu.Unlock()
	if !ok {
		return &api.TokenSession{Active: false}, nil
	}
	return session, nil
}

package brokertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/broker"
)

// Server is a deterministic fake broker. Users, sessions and OIDC clients are
// registered up front; tokens are derived from usernames so tests can
// predict them. It is safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	users    map[string]string // tenant/username -> password
	sessions map[string]api.TokenSession
	refresh  map[string]string // refresh token -> access token
	clients  map[string]string // client id -> tenant id
	iam      map[string]string // IAM client id -> client id
	failures map[string]failure
	seen     map[string][]json.RawMessage
	issuer   string
}

type failure struct {
	status  int
	message string
}

// NewServer creates an empty fake broker. issuer is used as the base of the
// OIDC discovery endpoints.
func NewServer(issuer string) *Server {
	return &Server{
		users:    make(map[string]string),
		sessions: make(map[string]api.TokenSession),
		refresh:  make(map[string]string),
		clients:  make(map[string]string),
		iam:      make(map[string]string),
		failures: make(map[string]failure),
		seen:     make(map[string][]json.RawMessage),
		issuer:   strings.TrimRight(issuer, "/"),
	}
}

// AddUser registers a user with a password in a tenant.
func (s *Server) AddUser(tenantID, username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[tenantID+"/"+username] = password
}

// AddSession registers a live session for an access token.
func (s *Server) AddSession(accessToken string, session api.TokenSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[accessToken] = session
}

// AddClient registers a platform client of a tenant together with the IAM
// client id the gateway presents for it. Sessions opened with that IAM
// client are bound to clientID.
func (s *Server) AddClient(clientID, tenantID, iamClientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = tenantID
	if iamClientID != "" {
		s.iam[iamClientID] = clientID
	}
}

// Fail makes every call to op answer with status and message.
func (s *Server) Fail(op string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = failure{status: status, message: message}
}

// Received returns the raw bodies received for op, oldest first.
func (s *Server) Received(op string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.seen[op]...)
}

// Handler returns the HTTP handler serving the broker protocol.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /"+broker.OpAuthenticate, handle(s, broker.OpAuthenticate, s.authenticate))
	mux.HandleFunc("POST /"+broker.OpIsAuthenticated, handle(s, broker.OpIsAuthenticated, s.sessionStatus))
	mux.HandleFunc("POST /"+broker.OpGetUser, handle(s, broker.OpGetUser, s.user))
	mux.HandleFunc("POST /"+broker.OpServiceAccountToken, handle(s, broker.OpServiceAccountToken, s.serviceAccountToken))
	mux.HandleFunc("POST /"+broker.OpEndSession, handle(s, broker.OpEndSession, s.endSession))
	mux.HandleFunc("POST /"+broker.OpAuthorize, handle(s, broker.OpAuthorize, s.authorize))
	mux.HandleFunc("POST /"+broker.OpToken, handle(s, broker.OpToken, s.token))
	mux.HandleFunc("POST /"+broker.OpCredentials, handle(s, broker.OpCredentials, s.credentials))
	mux.HandleFunc("POST /"+broker.OpOIDCConfiguration, handle(s, broker.OpOIDCConfiguration, s.oidcConfiguration))
	mux.HandleFunc("POST /"+broker.OpIntrospect, handle(s, broker.OpIntrospect, s.introspect))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// handle decodes the request body into Req, applies configured failures and
// writes the handler's result as JSON.
func handle[Req any](s *Server, op string, fn func(Req) (any, *api.APIError, int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, api.NewInvalidRequestError("", "malformed JSON"))
			return
		}

		s.mu.Lock()
		s.seen[op] = append(s.seen[op], raw)
		f, failing := s.failures[op]
		s.mu.Unlock()

		if failing {
			writeError(w, f.status, &api.APIError{Type: api.ErrorTypeUpstream, Message: f.message})
			return
		}

		var req Req
		if err := json.Unmarshal(raw, &req); err != nil {
			writeError(w, http.StatusBadRequest, api.NewInvalidRequestError("", "malformed request"))
			return
		}

		result, apiErr, status := fn(req)
		if apiErr != nil {
			writeError(w, status, apiErr)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func writeError(w http.ResponseWriter, status int, err *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: err})
}

func rejected(status int, message string) (any, *api.APIError, int) {
	return nil, &api.APIError{Type: api.ErrorTypeUpstream, Message: message}, status
}

func ok(v any) (any, *api.APIError, int) {
	return v, nil, http.StatusOK
}

// login records a session for username and returns its tokens.
func (s *Server) login(tenantID, clientID, username string) (access, refresh string) {
	access = "at-" + tenantID + "-" + username
	refresh = "rt-" + tenantID + "-" + username
	s.sessions[access] = api.TokenSession{Active: true, Username: username, TenantID: tenantID, ClientID: clientID}
	s.refresh[refresh] = access
	return access, refresh
}

func (s *Server) checkPassword(tenantID, username, password string) bool {
	want, ok := s.users[tenantID+"/"+username]
	return ok && want == password
}

func (s *Server) authenticate(req api.AuthenticateRequest) (any, *api.APIError, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkPassword(req.TenantID, req.Username, req.Password) {
		return rejected(http.StatusUnauthorized, "invalid user credentials")
	}
	access, refresh := s.login(req.TenantID, s.iam[req.ClientID], req.Username)
	return ok(api.AuthToken{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    300,
		Claims:       []api.Claim{{Key: "username", Value: req.Username}},
	})
}

func (s *Server) sessionStatus(req api.SessionRequest) (any, *api.APIError, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, found := s.sessions[req.AccessToken]
	return ok(api.SessionStatus{Authenticated: found && session.Active && session.TenantID == req.TenantID})
}

func (s *Server) user(req api.SessionRequest) (any, *api.APIError, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, found := s.sessions[req.AccessToken]
	if !found || !session.Active || session.TenantID != req.TenantID {
		return rejected(http.StatusUnauthorized, "invalid access token")
	}
	return ok(api.User{
		Sub:          "sub-" + session.Username,
		Username:     session.Username,
		EmailAddress: session.Username + "@example.org",
		ClientID:     session.ClientID,
	})
}

func (s *Server) serviceAccountToken(req api.ServiceAccountTokenRequest) (any, *api.APIError, int) {
	if req.ClientID == "" || req.ClientSecret == "" {
		return rejected(http.StatusUnauthorized, "missing IAM client credentials")
	}
	return ok(api.AuthToken{AccessToken: "sa-" + req.TenantID, TokenType: "Bearer", ExpiresIn: 300})
}

func (s *Server) endSession(req api.EndSessionRequest) (any, *api.APIError, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	access, found := s.refresh[req.RefreshToken]
	if !found {
		return rejected(http.StatusBadRequest, "invalid refresh token")
	}
	delete(s.refresh, req.RefreshToken)
	delete(s.sessions, access)
	return ok(api.OperationStatus{Status: true})
}

func (s *Server) authorize(req api.AuthorizeRequest) (any, *api.APIError, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tenant, found := s.clients[req.ClientID]; !found || tenant != req.TenantID {
		return rejected(http.StatusNotFound, "unknown client")
	}
	code := "code-" + req.ClientID
	return ok(api.AuthorizationResponse{RedirectURI: req.RedirectURI + "?code=" + code, Code: code})
}

func (s *Server) token(req api.TokenRequest) (any, *api.APIError, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var access, refresh string
	switch req.GrantType {
	case api.GrantTypeAuthorizationCode:
		if !strings.HasPrefix(req.Code, "code-") {
			return rejected(http.StatusBadRequest, "invalid_grant")
		}
		access, refresh = s.login(req.TenantID, strings.TrimPrefix(req.Code, "code-"), "code-user")
	case api.GrantTypePassword:
		if !s.checkPassword(req.TenantID, req.Username, req.Password) {
			return rejected(http.StatusUnauthorized, "invalid user credentials")
		}
		access, refresh = s.login(req.TenantID, s.iam[req.ClientID], req.Username)
	case api.GrantTypeRefreshToken:
		old, found := s.refresh[req.RefreshToken]
		if !found {
			return rejected(http.StatusBadRequest, "invalid_grant")
		}
		session := s.sessions[old]
		delete(s.refresh, req.RefreshToken)
		access, refresh = s.login(session.TenantID, session.ClientID, session.Username)
	case api.GrantTypeClientCredentials:
		access = "sa-" + req.TenantID
	default:
		return rejected(http.StatusBadRequest, "unsupported_grant_type")
	}
	return ok(api.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    300,
		Scope:        req.Scope,
	})
}

func (s *Server) credentials(req api.CredentialsRequest) (any, *api.APIError, int) {
	if req.Credentials.VedaClientID == "" {
		return rejected(http.StatusNotFound, "no credentials")
	}
	return ok(req.Credentials)
}

func (s *Server) oidcConfiguration(req api.OIDCConfigurationRequest) (any, *api.APIError, int) {
	s.mu.Lock()
	tenant, found := s.clients[req.ClientID]
	s.mu.Unlock()
	if !found {
		return rejected(http.StatusNotFound, "no tenant for client")
	}
	base := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", s.issuer, tenant)
	return ok(api.OIDCConfiguration{
		Issuer:                            s.issuer + "/realms/" + tenant,
		AuthorizationEndpoint:             base + "/auth",
		TokenEndpoint:                     base + "/token",
		UserinfoEndpoint:                  base + "/userinfo",
		JWKSURI:                           base + "/certs",
		EndSessionEndpoint:                base + "/logout",
		ResponseTypesSupported:            []string{"code"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		ScopesSupported:                   []string{"openid", "email", "profile"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		GrantTypesSupported:               []string{"authorization_code", "password", "refresh_token", "client_credentials"},
	})
}

func (s *Server) introspect(req api.IntrospectRequest) (any, *api.APIError, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, found := s.sessions[req.AccessToken]
	if !found {
		return ok(api.TokenSession{Active: false})
	}
	return ok(session)
}

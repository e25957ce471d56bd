package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/transport"
)

// stubHandler records the input each flow received and answers with err
// when set.
type stubHandler struct {
	err    error
	inputs map[string]any
	header http.Header
}

func newStub() *stubHandler {
	return &stubHandler{inputs: make(map[string]any)}
}

func (s *stubHandler) seen(flow string, h http.Header, in any) error {
	s.inputs[flow] = in
	s.header = h
	return s.err
}

func (s *stubHandler) Authenticate(_ context.Context, h http.Header, in api.AuthenticateInput) (*api.AuthToken, error) {
	if err := s.seen("authenticate", h, in); err != nil {
		return nil, err
	}
	return &api.AuthToken{AccessToken: "at-" + in.Username}, nil
}

func (s *stubHandler) IsAuthenticated(_ context.Context, h http.Header, in api.SessionInput) (bool, error) {
	if err := s.seen("status", h, in); err != nil {
		return false, err
	}
	return in.AccessToken == "live", nil
}

func (s *stubHandler) GetUser(_ context.Context, h http.Header, in api.SessionInput) (*api.User, error) {
	if err := s.seen("user", h, in); err != nil {
		return nil, err
	}
	return &api.User{Username: "alice"}, nil
}

func (s *stubHandler) ServiceAccountToken(_ context.Context, h http.Header, in api.ServiceAccountTokenInput) (*api.AuthToken, error) {
	if err := s.seen("account_token", h, in); err != nil {
		return nil, err
	}
	return &api.AuthToken{AccessToken: "sa"}, nil
}

func (s *stubHandler) EndSession(_ context.Context, h http.Header, in api.EndSessionInput) (bool, error) {
	if err := s.seen("logout", h, in); err != nil {
		return false, err
	}
	return true, nil
}

func (s *stubHandler) Authorize(_ context.Context, in api.AuthorizeInput) (*api.AuthorizationResponse, error) {
	if err := s.seen("authorize", nil, in); err != nil {
		return nil, err
	}
	return &api.AuthorizationResponse{RedirectURI: in.RedirectURI}, nil
}

func (s *stubHandler) Token(_ context.Context, h http.Header, in api.TokenInput) (*api.TokenResponse, error) {
	if err := s.seen("token", h, in); err != nil {
		return nil, err
	}
	return &api.TokenResponse{AccessToken: "tok", TokenType: "Bearer"}, nil
}

func (s *stubHandler) Credentials(_ context.Context, h http.Header, in api.CredentialsInput) (*api.Credentials, error) {
	if err := s.seen("credentials", h, in); err != nil {
		return nil, err
	}
	return &api.Credentials{VedaClientID: in.ClientID}, nil
}

func (s *stubHandler) OIDCConfiguration(_ context.Context, in api.OIDCConfigurationInput) (*api.OIDCConfiguration, error) {
	if err := s.seen("oidc", nil, in); err != nil {
		return nil, err
	}
	return &api.OIDCConfiguration{Issuer: "https://iam/" + in.ClientID}, nil
}

func newTestAdapter(stub *stubHandler, mutate func(*Config)) http.Handler {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewAdapter(stub, cfg, nil).Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *api.APIError {
	t.Helper()
	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error == nil {
		t.Fatal("error body has no error object")
	}
	return body.Error
}

func TestRoutesDecodeInput(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		flow   string
		want   any
	}{
		{
			name:   "authenticate body",
			method: http.MethodPost,
			target: PathAuthenticate,
			body:   `{"username":"alice","password":"pw","tenant_id":"T9"}`,
			flow:   "authenticate",
			want:   api.AuthenticateInput{Username: "alice", Password: "pw", TenantID: "T9"},
		},
		{
			name:   "session status body",
			method: http.MethodPost,
			target: PathSessionStatus,
			body:   `{"access_token":"live"}`,
			flow:   "status",
			want:   api.SessionInput{AccessToken: "live"},
		},
		{
			name:   "user query",
			method: http.MethodGet,
			target: PathUser + "?access_token=tok",
			flow:   "user",
			want:   api.SessionInput{AccessToken: "tok"},
		},
		{
			name:   "account token query",
			method: http.MethodGet,
			target: PathServiceAccountToken + "?tenant_id=T9&client_id=x&client_secret=y",
			flow:   "account_token",
			want:   api.ServiceAccountTokenInput{TenantID: "T9", ClientID: "x", ClientSecret: "y"},
		},
		{
			name:   "logout body",
			method: http.MethodPost,
			target: PathLogout,
			body:   `{"refresh_token":"rt"}`,
			flow:   "logout",
			want:   api.EndSessionInput{RefreshToken: "rt"},
		},
		{
			name:   "authorize query",
			method: http.MethodGet,
			target: PathAuthorize + "?client_id=c&tenant_id=T1&redirect_uri=https%3A%2F%2Fapp%2Fcb",
			flow:   "authorize",
			want:   api.AuthorizeInput{ClientID: "c", TenantID: "T1", RedirectURI: "https://app/cb"},
		},
		{
			name:   "token body",
			method: http.MethodPost,
			target: PathToken,
			body:   `{"grant_type":"password","username":"u","password":"p"}`,
			flow:   "token",
			want:   api.TokenInput{GrantType: "password", Username: "u", Password: "p"},
		},
		{
			name:   "credentials query",
			method: http.MethodGet,
			target: PathCredentials + "?client_id=clientA",
			flow:   "credentials",
			want:   api.CredentialsInput{ClientID: "clientA"},
		},
		{
			name:   "oidc query",
			method: http.MethodGet,
			target: PathOIDCConfiguration + "?client_id=clientA",
			flow:   "oidc",
			want:   api.OIDCConfigurationInput{ClientID: "clientA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			rec := do(newTestAdapter(stub, nil), tt.method, tt.target, tt.body)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			got, ok := stub.inputs[tt.flow]
			if !ok {
				t.Fatalf("flow %s not invoked", tt.flow)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("input mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHeadersReachHandler(t *testing.T) {
	stub := newStub()
	h := newTestAdapter(stub, nil)

	req := httptest.NewRequest(http.MethodGet, PathServiceAccountToken, nil)
	req.Header.Set("Authorization", "Basic abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := stub.header.Get("Authorization"); got != "Basic abc" {
		t.Errorf("Authorization = %q, want it passed through", got)
	}
}

func TestBooleanFlowsWriteBareJSON(t *testing.T) {
	h := newTestAdapter(newStub(), nil)

	for _, tc := range []struct {
		path, body, want string
	}{
		{PathSessionStatus, `{"access_token":"live"}`, "true"},
		{PathSessionStatus, `{"access_token":"other"}`, "false"},
		{PathLogout, `{"refresh_token":"rt"}`, "true"},
	} {
		rec := do(h, http.MethodPost, tc.path, tc.body)
		if got := strings.TrimSpace(rec.Body.String()); got != tc.want {
			t.Errorf("%s %s: body = %q, want %q", tc.path, tc.body, got, tc.want)
		}
	}
}

func TestEmptyBodyDecodesToZeroInput(t *testing.T) {
	stub := newStub()
	rec := do(newTestAdapter(stub, nil), http.MethodPost, PathLogout, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := stub.inputs["logout"]; got != (api.EndSessionInput{}) {
		t.Errorf("input = %+v, want zero value", got)
	}
}

func TestMalformedJSON(t *testing.T) {
	stub := newStub()
	rec := do(newTestAdapter(stub, nil), http.MethodPost, PathAuthenticate, `{"username":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Type != api.ErrorTypeInvalidRequest || apiErr.Param != "body" {
		t.Errorf("error = %+v", apiErr)
	}
	if len(stub.inputs) != 0 {
		t.Error("handler invoked for malformed JSON")
	}
}

func TestBodyTooLarge(t *testing.T) {
	h := newTestAdapter(newStub(), func(c *Config) { c.MaxBodySize = 32 })

	body := `{"username":"` + strings.Repeat("a", 100) + `"}`
	rec := do(h, http.MethodPost, PathAuthenticate, body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestContentType(t *testing.T) {
	h := newTestAdapter(newStub(), nil)

	req := httptest.NewRequest(http.MethodPost, PathToken, strings.NewReader("grant_type=password"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("form body: status = %d, want 415", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, PathToken, strings.NewReader(`{"grant_type":"password"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("json with charset: status = %d, want 200", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   api.ErrorType
	}{
		{"unauthorized", api.NewUnauthorizedError(), 401, api.ErrorTypeUnauthorized},
		{"bad request", api.NewInvalidRequestError("refresh_token", "missing"), 400, api.ErrorTypeInvalidRequest},
		{"not found", api.NewNotFoundError("no tenant"), 404, api.ErrorTypeNotFound},
		{"upstream 4xx", api.NewUpstreamError(409, "conflict"), 409, api.ErrorTypeUpstream},
		{"upstream 5xx", api.NewUpstreamError(502, "bad gateway"), 500, api.ErrorTypeUpstream},
		{"rate limited", api.NewTooManyRequestsError("slow down"), 429, api.ErrorTypeTooManyRequests},
		{"plain error", errors.New("db password is hunter2"), 500, api.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			stub.err = tt.err
			rec := do(newTestAdapter(stub, nil), http.MethodGet, PathCredentials+"?client_id=c", "")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			apiErr := decodeError(t, rec)
			if apiErr.Type != tt.wantType {
				t.Errorf("type = %s, want %s", apiErr.Type, tt.wantType)
			}
			if strings.Contains(apiErr.Message, "hunter2") {
				t.Error("internal error detail leaked to caller")
			}
		})
	}
}

func TestBasePath(t *testing.T) {
	h := newTestAdapter(newStub(), func(c *Config) { c.BasePath = "/api/v1" })

	if rec := do(h, http.MethodGet, "/api/v1"+PathOIDCConfiguration+"?client_id=a", ""); rec.Code != http.StatusOK {
		t.Errorf("prefixed route: status = %d, want 200", rec.Code)
	}
	rec := do(h, http.MethodGet, PathOIDCConfiguration+"?client_id=a", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unprefixed route: status = %d, want 404", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("type = %s, want not_found", apiErr.Type)
	}
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz outside base path: status = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(newTestAdapter(newStub(), nil), http.MethodGet, PathAuthenticate, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	checks := map[string]transport.HealthChecker{
		"store":  transport.HealthCheckFunc(func(context.Context) error { return nil }),
		"broker": transport.HealthCheckFunc(func(context.Context) error { return errors.New("connection refused") }),
	}
	h := NewAdapter(newStub(), DefaultConfig(), checks).Handler()

	rec := do(h, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Failed map[string]string `json:"failed"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if _, ok := body.Failed["broker"]; !ok || len(body.Failed) != 1 {
		t.Errorf("failed = %v, want only broker", body.Failed)
	}

	delete(checks, "broker")
	if rec := do(h, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("all healthy: status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestAdapter(newStub(), nil), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output is missing the default collectors")
	}

	rec = do(newTestAdapter(newStub(), func(c *Config) { c.MetricsPath = "" }), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled metrics: status = %d, want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestAdapter(newStub(), func(c *Config) { c.CORSOrigins = []string{"https://portal.example.org"} })

	req := httptest.NewRequest(http.MethodOptions, PathAuthorize, nil)
	req.Header.Set("Origin", "https://portal.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.org" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, PathAuthorize, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

package broker_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/broker"
	"github.com/ShivangMishra/veda-auth-central/pkg/broker/brokertest"
	"github.com/ShivangMishra/veda-auth-central/pkg/observability"
)

func newFake(t *testing.T) (*brokertest.Server, *broker.Client) {
	t.Helper()
	fake := brokertest.NewServer("https://iam.example.org")
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	return fake, broker.NewClient(broker.Config{URL: srv.URL + "/", Timeout: 2 * time.Second})
}

func TestClient_AuthenticateAndIntrospect(t *testing.T) {
	fake, client := newFake(t)
	fake.AddClient("clientA", "T1", "iam-t1")
	fake.AddUser("T1", "alice", "pw")
	ctx := context.Background()

	tok, err := client.Authenticate(ctx, api.AuthenticateRequest{
		TenantID: "T1", ClientID: "iam-t1", ClientSecret: "s", Username: "alice", Password: "pw",
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		t.Fatalf("missing tokens: %+v", tok)
	}

	session, err := client.IntrospectToken(ctx, api.IntrospectRequest{AccessToken: tok.AccessToken})
	if err != nil {
		t.Fatalf("IntrospectToken: %v", err)
	}
	want := api.TokenSession{Active: true, Username: "alice", TenantID: "T1", ClientID: "clientA"}
	if *session != want {
		t.Errorf("session = %+v, want %+v", *session, want)
	}

	var sent api.AuthenticateRequest
	if err := json.Unmarshal(fake.Received(broker.OpAuthenticate)[0], &sent); err != nil {
		t.Fatal(err)
	}
	if sent.TenantID != "T1" || sent.ClientID != "iam-t1" {
		t.Errorf("broker received %+v", sent)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantType   api.ErrorType
		wantStatus int
	}{
		{"not found", http.StatusNotFound, api.ErrorTypeNotFound, http.StatusNotFound},
		{"bad request", http.StatusBadRequest, api.ErrorTypeUpstream, http.StatusBadRequest},
		{"unauthorized", http.StatusUnauthorized, api.ErrorTypeUpstream, http.StatusUnauthorized},
		{"conflict", http.StatusConflict, api.ErrorTypeUpstream, http.StatusConflict},
		{"internal", http.StatusInternalServerError, api.ErrorTypeUpstream, http.StatusInternalServerError},
		{"bad gateway", http.StatusBadGateway, api.ErrorTypeUpstream, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, client := newFake(t)
			fake.Fail(broker.OpToken, tt.status, "broker says no")

			_, err := client.Token(context.Background(), api.TokenRequest{GrantType: "client_credentials"})
			apiErr, ok := err.(*api.APIError)
			if !ok {
				t.Fatalf("err = %T %v, want *api.APIError", err, err)
			}
			if apiErr.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", apiErr.Type, tt.wantType)
			}
			if apiErr.HTTPStatus() != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", apiErr.HTTPStatus(), tt.wantStatus)
			}
			if apiErr.Message != "broker says no" {
				t.Errorf("Message = %q, want broker message", apiErr.Message)
			}
		})
	}
}

func TestClient_OIDCNotFoundPassesThrough(t *testing.T) {
	fake, client := newFake(t)
	fake.AddClient("clientA", "T1", "")

	cfg, err := client.OIDCConfiguration(context.Background(), api.OIDCConfigurationRequest{ClientID: "clientA"})
	if err != nil {
		t.Fatalf("OIDCConfiguration: %v", err)
	}
	if !strings.HasSuffix(cfg.Issuer, "/realms/T1") {
		t.Errorf("Issuer = %q", cfg.Issuer)
	}

	_, err = client.OIDCConfiguration(context.Background(), api.OIDCConfigurationRequest{ClientID: "unknown"})
	if !api.IsType(err, api.ErrorTypeNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}

func TestClient_TimeoutIsUpstreamFaultWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// The server only notices a client disconnect once the body is read.
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := broker.NewClient(broker.Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := client.ServiceAccountToken(context.Background(), api.ServiceAccountTokenRequest{TenantID: "T1"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call returned after %v, want the 50ms timeout", elapsed)
	}

	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeUpstream || apiErr.HTTPStatus() != http.StatusInternalServerError {
		t.Fatalf("err = %v, want upstream error with status 500", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("broker hit %d times, want 1", n)
	}
}

func TestClient_CancellationPropagates(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	client := broker.NewClient(broker.Config{URL: srv.URL, Timeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	start := time.Now()
	_, err := client.Authorize(ctx, api.AuthorizeRequest{ClientID: "c"})
	if !api.IsType(err, api.ErrorTypeUpstream) {
		t.Errorf("err = %v, want upstream error", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call returned after %v, want prompt return on cancellation", elapsed)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := broker.NewClient(broker.Config{URL: url, Timeout: time.Second})
	_, err := client.EndSession(context.Background(), api.EndSessionRequest{RefreshToken: "rt"})
	if !api.IsType(err, api.ErrorTypeUpstream) {
		t.Errorf("err = %v, want upstream error", err)
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	client := broker.NewClient(broker.Config{URL: srv.URL})
	_, err := client.GetUser(context.Background(), api.SessionRequest{AccessToken: "t"})
	if !api.IsType(err, api.ErrorTypeUpstream) {
		t.Errorf("err = %v, want upstream error", err)
	}
}

func TestClient_OAuth2ClientCredentials(t *testing.T) {
	var tokenCalls atomic.Int32
	var gotAuth atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gw-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /credentials", func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{"veda_client_id":"clientA"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := broker.NewClient(broker.Config{
		URL:          srv.URL,
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "gateway",
		ClientSecret: "gateway-secret",
	})
	for i := 0; i < 2; i++ {
		if _, err := client.Credentials(context.Background(), api.CredentialsRequest{}); err != nil {
			t.Fatalf("Credentials: %v", err)
		}
	}

	if got := gotAuth.Load(); got != "Bearer gw-token" {
		t.Errorf("Authorization = %v, want bearer token", got)
	}
	if n := tokenCalls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1 (cached)", n)
	}
}

func TestClient_InjectsTraceContextAndCountsCalls(t *testing.T) {
	if _, err := observability.InitTracing(context.Background(), observability.TracingOptions{}); err != nil {
		t.Fatal(err)
	}

	var traceparent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent.Store(r.Header.Get("traceparent"))
		w.Write([]byte(`{"status":true}`))
	}))
	defer srv.Close()

	before := testutil.ToFloat64(observability.UpstreamRequestsTotal.WithLabelValues(broker.OpEndSession, observability.StatusOK))

	// A remote parent makes the propagator emit a header even with the
	// no-op tracer provider.
	ctx := remoteParent(t)
	client := broker.NewClient(broker.Config{URL: srv.URL})
	if _, err := client.EndSession(ctx, api.EndSessionRequest{RefreshToken: "rt"}); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	if tp, _ := traceparent.Load().(string); !strings.Contains(tp, "4bf92f3577b34da6a3ce929d0e0e4736") {
		t.Errorf("traceparent = %q, want inbound trace id", tp)
	}
	after := testutil.ToFloat64(observability.UpstreamRequestsTotal.WithLabelValues(broker.OpEndSession, observability.StatusOK))
	if after-before != 1 {
		t.Errorf("upstream counter delta = %v, want 1", after-before)
	}
}

func remoteParent(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatal(err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatal(err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(context.Background(), sc)
}

func TestClient_HealthCheck(t *testing.T) {
	_, client := newFake(t)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

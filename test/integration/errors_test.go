package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	transporthttp "github.com/ShivangMishra/veda-auth-central/pkg/transport/http"
)

func TestErrorResponses(t *testing.T) {
	app := basicAuth("clientA", "secretA")

	tests := []struct {
		name       string
		method     string
		url        string
		authz      string
		body       string
		wantStatus int
		wantType   api.ErrorType
	}{
		{
			name:       "malformed JSON",
			method:     http.MethodPost,
			url:        testEnv.APIURL(transporthttp.PathAuthenticate),
			authz:      app,
			body:       `{"username":`,
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			url:        testEnv.APIURL("/identity-management/nope"),
			wantStatus: http.StatusNotFound,
			wantType:   api.ErrorTypeNotFound,
		},
		{
			name:       "route outside base path",
			method:     http.MethodGet,
			url:        testEnv.BaseURL() + transporthttp.PathOIDCConfiguration + "?client_id=clientA",
			wantStatus: http.StatusNotFound,
			wantType:   api.ErrorTypeNotFound,
		},
		{
			name:       "wrong method",
			method:     http.MethodGet,
			url:        testEnv.APIURL(transporthttp.PathToken),
			wantStatus: http.StatusMethodNotAllowed,
			wantType:   api.ErrorTypeInvalidRequest,
		},
		{
			name:       "missing credentials",
			method:     http.MethodGet,
			url:        testEnv.APIURL(transporthttp.PathServiceAccountToken),
			wantStatus: http.StatusUnauthorized,
			wantType:   api.ErrorTypeUnauthorized,
		},
		{
			name:       "unknown grant",
			method:     http.MethodPost,
			url:        testEnv.APIURL(transporthttp.PathToken),
			authz:      app,
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, tt.method, tt.url, tt.authz, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, readBody(t, resp))
			}
			var errResp api.ErrorResponse
			decodeJSON(t, resp, &errResp)
			if errResp.Error == nil || errResp.Error.Type != tt.wantType {
				t.Errorf("error = %+v, want type %s", errResp.Error, tt.wantType)
			}
		})
	}
}

func TestWrongClientSecretDoesNotLeak(t *testing.T) {
	resp := send(t, http.MethodGet, testEnv.APIURL(transporthttp.PathServiceAccountToken), basicAuth("clientA", "not-the-secret"), "")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	for _, secret := range []string{"secretA", "iam-secret-T1", "not-the-secret"} {
		if strings.Contains(body, secret) {
			t.Errorf("response leaks %q: %s", secret, body)
		}
	}
}

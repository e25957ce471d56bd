package clientsecret

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ShivangMishra/veda-auth-central/pkg/auth"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage/memory"
)

var now = time.Unix(1800000000, 0)

func newTestAuth() *Authenticator {
	store := memory.New(
		storage.ClientRecord{
			ClientID:              "clientA",
			ClientSecret:          "secretA",
			TenantID:              "T1",
			ClientIDIssuedAt:      1700000000,
			IAMClientID:           "iam-T1",
			IAMClientSecret:       "iam-secret-T1",
			FederatedClientID:     "cilogon-T1",
			FederatedClientSecret: "cilogon-secret-T1",
			Tier:                  "premium",
		},
		storage.ClientRecord{
			ClientID:              "expired",
			ClientSecret:          "old",
			TenantID:              "T1",
			ClientIDIssuedAt:      1700000000,
			ClientSecretExpiresAt: now.Unix() - 1,
			IAMClientID:           "iam-T1",
			IAMClientSecret:       "iam-secret-T1",
		},
		storage.ClientRecord{
			ClientID:         "partial",
			ClientSecret:     "partial",
			TenantID:         "T2",
			ClientIDIssuedAt: 1700000000,
		},
	)
	return New(store, WithClock(func() time.Time { return now }))
}

func header(value string) http.Header {
	h := http.Header{}
	if value != "" {
		h.Set("Authorization", value)
	}
	return h
}

func encode(pair string) string {
	return base64.StdEncoding.EncodeToString([]byte(pair))
}

func TestValidCredentials(t *testing.T) {
	for _, scheme := range []string{"Basic", "Bearer", "basic"} {
		t.Run(scheme, func(t *testing.T) {
			result := newTestAuth().Authenticate(context.Background(), header(scheme+" "+encode("clientA:secretA")))

			if result.Decision != auth.Yes {
				t.Fatalf("Decision = %s, want yes (err=%v)", result.Decision, result.Err)
			}
			c := result.Claim
			if c.TenantID != "T1" || c.PlatformClientID != "clientA" || c.PlatformClientSecret != "secretA" {
				t.Errorf("platform fields = %+v", c)
			}
			if c.IAMClientID != "iam-T1" || c.IAMClientSecret != "iam-secret-T1" {
				t.Errorf("IAM fields = %s / %s", c.IAMClientID, c.IAMClientSecret)
			}
			if c.FederatedClientID != "cilogon-T1" || c.FederatedClientSecret != "cilogon-secret-T1" {
				t.Errorf("federated fields = %s / %s", c.FederatedClientID, c.FederatedClientSecret)
			}
			if c.Username != "" {
				t.Errorf("Username = %q, want empty", c.Username)
			}
			if result.Tier != "premium" {
				t.Errorf("Tier = %q, want premium", result.Tier)
			}
		})
	}
}

func TestSecretContainingColon(t *testing.T) {
	store := memory.New(storage.ClientRecord{
		ClientID: "c", ClientSecret: "a:b", TenantID: "T", ClientIDIssuedAt: 1,
		IAMClientID: "i", IAMClientSecret: "s",
	})
	result := New(store).Authenticate(context.Background(), header("Basic "+encode("c:a:b")))
	if result.Decision != auth.Yes {
		t.Errorf("Decision = %s, want yes (err=%v)", result.Decision, result.Err)
	}
}

func TestRejections(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    auth.AuthDecision
		wantErr error
	}{
		{"no header", "", auth.Abstain, nil},
		{"other scheme", "Digest abc", auth.Abstain, nil},
		{"no payload", "Basic", auth.Abstain, nil},
		{"bad base64", "Basic !!!not-base64", auth.No, auth.ErrMalformedHeader},
		{"missing colon", "Basic " + encode("clientAsecretA"), auth.No, auth.ErrMalformedHeader},
		{"empty id", "Basic " + encode(":secretA"), auth.No, auth.ErrMalformedHeader},
		{"empty secret", "Basic " + encode("clientA:"), auth.No, auth.ErrMalformedHeader},
		{"unknown client", "Basic " + encode("nobody:secret"), auth.No, auth.ErrUnknownClient},
		{"wrong secret", "Basic " + encode("clientA:secretB"), auth.No, auth.ErrSecretMismatch},
		{"expired secret", "Basic " + encode("expired:old"), auth.No, auth.ErrSecretExpired},
		{"incomplete record", "Basic " + encode("partial:partial"), auth.No, auth.ErrIncompleteRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestAuth().Authenticate(context.Background(), header(tt.header))
			if result.Decision != tt.want {
				t.Fatalf("Decision = %s, want %s", result.Decision, tt.want)
			}
			if tt.wantErr != nil && !errors.Is(result.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", result.Err, tt.wantErr)
			}
			if result.Claim != nil {
				t.Error("rejected result carries a claim")
			}
		})
	}
}

// brokenStore fails every lookup.
type brokenStore struct{ storage.CredentialStore }

func (brokenStore) LookupClient(context.Context, string) (*storage.ClientRecord, error) {
	return nil, errors.New("connection refused")
}

func TestBackendFailureFailsClosed(t *testing.T) {
	result := New(brokenStore{}).Authenticate(context.Background(), header("Basic "+encode("clientA:secretA")))
	if result.Decision != auth.No || !errors.Is(result.Err, auth.ErrCredentialBackend) {
		t.Errorf("got %s / %v, want no / ErrCredentialBackend", result.Decision, result.Err)
	}
}

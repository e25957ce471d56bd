// Package clientsecret provides the platform credential authenticator. It
// reads a base64-encoded clientId:clientSecret pair from the Authorization
// header, looks the client up in a storage.CredentialStore and compares
// secrets using SHA-256 hashing and constant-time comparison.
package clientsecret

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ShivangMishra/veda-auth-central/pkg/auth"
	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage"
)

// Authenticator validates client credentials against a credential store.
type Authenticator struct {
	store storage.CredentialStore
	now   func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithClock overrides the clock used for secret expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// New creates an authenticator backed by store.
func New(store storage.CredentialStore, opts ...Option) *Authenticator {
	a := &Authenticator{store: store, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Authenticate extracts the client credential pair and validates it.
//
// Decision outcomes:
//   - Abstain: no Authorization header, or a scheme other than Basic/Bearer
//   - No: pair malformed, unknown client, wrong or expired secret, lookup failure
//   - Yes: complete claim for the client's tenant
func (a *Authenticator) Authenticate(ctx context.Context, h http.Header) auth.AuthResult {
	clientID, secret, ok := parseHeader(h.Get("Authorization"))
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if clientID == "" || secret == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrMalformedHeader}
	}

	rec, err := a.store.LookupClient(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnknownClient}
	}
	if err != nil {
		slog.Error("credential lookup failed", "client_id", clientID, "error", err)
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrCredentialBackend}
	}

	// Hash both sides so the comparison does not leak the secret length.
	got := sha256.Sum256([]byte(secret))
	want := sha256.Sum256([]byte(rec.ClientSecret))
	if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrSecretMismatch}
	}

	claim := rec.Claim()
	if claim.Expired(a.now().Unix()) {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrSecretExpired}
	}
	if err := claim.Complete(); err != nil {
		slog.Error("client record is incomplete", "client_id", clientID, "error", err)
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrIncompleteRecord}
	}

	debug.Log("auth", "client authenticated", "client_id", clientID, "tenant_id", rec.TenantID)
	return auth.AuthResult{Decision: auth.Yes, Claim: claim, Tier: rec.Tier}
}

// parseHeader decodes "Basic|Bearer base64(id:secret)". ok is false when
// the header is absent or uses another scheme. A recognized scheme with an
// undecodable payload yields ok with empty id and secret.
func parseHeader(header string) (clientID, secret string, ok bool) {
	scheme, payload, found := strings.Cut(header, " ")
	if !found {
		return "", "", false
	}
	if !strings.EqualFold(scheme, "Basic") && !strings.EqualFold(scheme, "Bearer") {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", "", true
	}
	clientID, secret, found = strings.Cut(string(decoded), ":")
	if !found {
		return "", "", true
	}
	return clientID, secret, true
}

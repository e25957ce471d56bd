package api

import (
	"fmt"
	"log/slog"
)

// CredentialClaim is the tenant-scoped credential bundle resolved for a
// single inbound call. It is owned by that call's context, discarded when the
// call ends, and never persisted or logged in full.
type CredentialClaim struct {
	TenantID string

	// Tenant IAM credential pair used to authenticate to the tenant's
	// identity backend.
	IAMClientID     string
	IAMClientSecret string

	// Platform credential pair identifying the calling application.
	PlatformClientID              string
	PlatformClientSecret          string
	PlatformClientIDIssuedAt      int64
	PlatformClientSecretExpiresAt int64 // 0 means the secret never expires

	// Federated login provider credentials, empty when the tenant has none.
	FederatedClientID     string
	FederatedClientSecret string

	// Username is set only when resolution was anchored to an end-user token.
	Username string
}

// Complete reports the first mandatory field that is not populated.
func (c *CredentialClaim) Complete() error {
	if c == nil {
		return fmt.Errorf("credential claim is nil")
	}
	switch {
	case c.TenantID == "":
		return fmt.Errorf("credential claim missing tenant id")
	case c.IAMClientID == "" || c.IAMClientSecret == "":
		return fmt.Errorf("credential claim missing IAM credentials")
	case c.PlatformClientID == "" || c.PlatformClientSecret == "":
		return fmt.Errorf("credential claim missing platform credentials")
	case c.PlatformClientIDIssuedAt == 0:
		return fmt.Errorf("credential claim missing platform issue time")
	case (c.FederatedClientID == "") != (c.FederatedClientSecret == ""):
		return fmt.Errorf("credential claim has a partial federated credential pair")
	}
	return nil
}

// MustBeComplete panics when the claim is incomplete. Building an upstream
// request from a partial claim is a programming error.
func (c *CredentialClaim) MustBeComplete() {
	if err := c.Complete(); err != nil {
		panic(err.Error())
	}
}

// Expired reports whether the platform secret has expired at unix time now.
func (c *CredentialClaim) Expired(now int64) bool {
	return c.PlatformClientSecretExpiresAt != 0 && now >= c.PlatformClientSecretExpiresAt
}

// String renders the claim without any secret.
func (c *CredentialClaim) String() string {
	if c == nil {
		return "CredentialClaim<nil>"
	}
	return fmt.Sprintf("CredentialClaim{tenant=%s platform_client=%s iam_client=%s federated=%t user=%s}",
		c.TenantID, c.PlatformClientID, c.IAMClientID, c.FederatedClientID != "", c.Username)
}

// LogValue implements slog.LogValuer so claims passed to a logger are redacted.
func (c *CredentialClaim) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("tenant_id", c.TenantID),
		slog.String("client_id", c.PlatformClientID),
		slog.String("username", c.Username),
	)
}

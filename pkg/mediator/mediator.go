package mediator

import (
	"net/url"
	"strings"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/auth"
)

// Claim keys attached to session requests.
const (
	ClaimUsername = "username"
	ClaimTenantID = "tenantId"
	ClaimClientID = "clientId"
)

// Authenticate builds a password authentication request.
func Authenticate(in api.AuthenticateInput, claim *api.CredentialClaim) (api.AuthenticateRequest, error) {
	if blank(in.Username) {
		return api.AuthenticateRequest{}, api.NewInvalidRequestError("username", "username is required")
	}
	if in.Password == "" {
		return api.AuthenticateRequest{}, api.NewInvalidRequestError("password", "password is required")
	}
	claim.MustBeComplete()

	return api.AuthenticateRequest{
		TenantID:     claim.TenantID,
		ClientID:     claim.IAMClientID,
		ClientSecret: claim.IAMClientSecret,
		Username:     in.Username,
		Password:     in.Password,
	}, nil
}

// Session builds the request shared by the session-status and user-profile
// flows. The attached claims describe the resolved session; claims sent by
// the caller are dropped.
func Session(accessToken string, session *auth.UserSession) (api.SessionRequest, error) {
	if blank(accessToken) {
		return api.SessionRequest{}, api.NewInvalidRequestError("access_token", "access_token is required")
	}
	app := session.Application
	app.MustBeComplete()

	return api.SessionRequest{
		TenantID:     app.TenantID,
		ClientID:     app.IAMClientID,
		ClientSecret: app.IAMClientSecret,
		AccessToken:  accessToken,
		Claims: []api.Claim{
			{Key: ClaimUsername, Value: session.Username},
			{Key: ClaimTenantID, Value: session.TenantID},
			{Key: ClaimClientID, Value: app.PlatformClientID},
		},
	}, nil
}

// ServiceAccountToken builds the user-management service account request.
// Client values passed as query parameters are ignored.
func ServiceAccountToken(claim *api.CredentialClaim) api.ServiceAccountTokenRequest {
	claim.MustBeComplete()
	return api.ServiceAccountTokenRequest{
		TenantID:     claim.TenantID,
		ClientID:     claim.IAMClientID,
		ClientSecret: claim.IAMClientSecret,
	}
}

// ValidateEndSession checks the logout input. It runs before credential
// resolution.
func ValidateEndSession(in api.EndSessionInput) error {
	if blank(in.RefreshToken) {
		return api.NewInvalidRequestError("refresh_token", "missing or empty refresh_token")
	}
	return nil
}

// EndSession builds a logout request.
func EndSession(in api.EndSessionInput, claim *api.CredentialClaim) (api.EndSessionRequest, error) {
	if err := ValidateEndSession(in); err != nil {
		return api.EndSessionRequest{}, err
	}
	claim.MustBeComplete()

	return api.EndSessionRequest{
		TenantID:     claim.TenantID,
		ClientID:     claim.IAMClientID,
		ClientSecret: claim.IAMClientSecret,
		RefreshToken: in.RefreshToken,
	}, nil
}

// Authorize builds the first step of the authorization code flow. The
// endpoint is public, so every value comes from the caller.
func Authorize(in api.AuthorizeInput) (api.AuthorizeRequest, error) {
	if blank(in.ClientID) {
		return api.AuthorizeRequest{}, api.NewInvalidRequestError("client_id", "client_id is required")
	}
	if blank(in.TenantID) {
		return api.AuthorizeRequest{}, api.NewInvalidRequestError("tenant_id", "tenant_id is required")
	}
	if err := validateRedirectURI(in.RedirectURI); err != nil {
		return api.AuthorizeRequest{}, err
	}

	return api.AuthorizeRequest{
		TenantID:    strings.TrimSpace(in.TenantID),
		ClientID:    strings.TrimSpace(in.ClientID),
		RedirectURI: in.RedirectURI,
	}, nil
}

// Token builds a token exchange request. An empty grant_type is inferred
// from the fields present: a code selects authorization_code, a username and
// password select password, and a refresh token selects refresh_token.
func Token(in api.TokenInput, claim *api.CredentialClaim) (api.TokenRequest, error) {
	grant := in.GrantType
	if grant == "" {
		grant = inferGrantType(in)
	}

	req := api.TokenRequest{GrantType: grant, Scope: in.Scope}
	switch grant {
	case api.GrantTypeAuthorizationCode:
		if blank(in.Code) {
			return api.TokenRequest{}, api.NewInvalidRequestError("code", "code is required for the authorization_code grant")
		}
		if err := validateRedirectURI(in.RedirectURI); err != nil {
			return api.TokenRequest{}, err
		}
		req.Code = in.Code
		req.RedirectURI = in.RedirectURI
	case api.GrantTypePassword:
		if blank(in.Username) {
			return api.TokenRequest{}, api.NewInvalidRequestError("username", "username is required for the password grant")
		}
		if in.Password == "" {
			return api.TokenRequest{}, api.NewInvalidRequestError("password", "password is required for the password grant")
		}
		req.Username = in.Username
		req.Password = in.Password
	case api.GrantTypeRefreshToken:
		if blank(in.RefreshToken) {
			return api.TokenRequest{}, api.NewInvalidRequestError("refresh_token", "refresh_token is required for the refresh_token grant")
		}
		req.RefreshToken = in.RefreshToken
	case api.GrantTypeClientCredentials:
	case "":
		return api.TokenRequest{}, api.NewInvalidRequestError("grant_type", "grant_type is required")
	default:
		return api.TokenRequest{}, api.NewInvalidRequestError("grant_type", "unsupported grant_type")
	}

	claim.MustBeComplete()
	req.TenantID = claim.TenantID
	req.ClientID = claim.IAMClientID
	req.ClientSecret = claim.IAMClientSecret
	return req, nil
}

// Credentials builds the stored-credentials request from the claim alone.
// The client id cross-check happens during resolution.
func Credentials(claim *api.CredentialClaim) api.CredentialsRequest {
	claim.MustBeComplete()
	return api.CredentialsRequest{
		Credentials: api.Credentials{
			VedaClientID:              claim.PlatformClientID,
			VedaClientSecret:          claim.PlatformClientSecret,
			VedaClientIDIssuedAt:      claim.PlatformClientIDIssuedAt,
			VedaClientSecretExpiresAt: claim.PlatformClientSecretExpiresAt,
			CILogonClientID:           claim.FederatedClientID,
			CILogonClientSecret:       claim.FederatedClientSecret,
			IAMClientID:               claim.IAMClientID,
			IAMClientSecret:           claim.IAMClientSecret,
		},
	}
}

// OIDCConfiguration builds a discovery metadata request.
func OIDCConfiguration(in api.OIDCConfigurationInput) (api.OIDCConfigurationRequest, error) {
	if blank(in.ClientID) {
		return api.OIDCConfigurationRequest{}, api.NewInvalidRequestError("client_id", "client_id is required")
	}
	return api.OIDCConfigurationRequest{ClientID: strings.TrimSpace(in.ClientID)}, nil
}

func inferGrantType(in api.TokenInput) string {
	switch {
	case in.Code != "":
		return api.GrantTypeAuthorizationCode
	case in.Username != "" || in.Password != "":
		return api.GrantTypePassword
	case in.RefreshToken != "":
		return api.GrantTypeRefreshToken
	}
	return ""
}

// validateRedirectURI accepts absolute http(s) URLs with a host and no
// fragment.
func validateRedirectURI(raw string) error {
	if blank(raw) {
		return api.NewInvalidRequestError("redirect_uri", "redirect_uri is required")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return api.NewInvalidRequestError("redirect_uri", "redirect_uri must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return api.NewInvalidRequestError("redirect_uri", "redirect_uri must use http or https")
	}
	if u.Fragment != "" || strings.Contains(raw, "#") {
		return api.NewInvalidRequestError("redirect_uri", "redirect_uri must not contain a fragment")
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

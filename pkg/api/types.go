package api

// ---------------------------------------------------------------------------
// Caller input
//
// Input structs mirror what callers send on the wire. Some carry tenant_id,
// client_id or client_secret because existing clients send them; those
// fields are decoded and then ignored. Upstream requests take tenant and
// client values only from a resolved CredentialClaim.
// ---------------------------------------------------------------------------

// AuthenticateInput is the body of POST /authenticate.
type AuthenticateInput struct {
	Username string `json:"username"`
	Password string `json:"password"`

	TenantID     string `json:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// SessionInput is the body of POST /authenticate/status. GET /user fills
// only AccessToken, from the query string.
type SessionInput struct {
	AccessToken string  `json:"access_token"`
	Claims      []Claim `json:"claims,omitempty"`
}

// ServiceAccountTokenInput holds the optional query parameters of
// GET /account/token.
type ServiceAccountTokenInput struct {
	TenantID     string `json:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// EndSessionInput is the body of POST /user/logout.
type EndSessionInput struct {
	RefreshToken string `json:"refresh_token"`

	TenantID     string `json:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// AuthorizeInput holds the query parameters of GET /authorize.
type AuthorizeInput struct {
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	TenantID    string `json:"tenant_id"`
}

// TokenInput is the body of POST /token. For the authorization code grant,
// Code and RedirectURI are used; for the password grant, Username and Password.
type TokenInput struct {
	GrantType    string `json:"grant_type,omitempty"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`

	TenantID     string `json:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// CredentialsInput holds the query parameters of GET /credentials.
type CredentialsInput struct {
	ClientID string `json:"client_id"`
}

// OIDCConfigurationInput holds the query parameters of
// GET /.well-known/openid-configuration.
type OIDCConfigurationInput struct {
	ClientID string `json:"client_id"`
}

// Grant types accepted by the token flow.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
)

// ---------------------------------------------------------------------------
// Upstream requests
//
// One struct per flow, built by the mediator from caller input and exactly
// one CredentialClaim. They are passed by value and never modified after
// construction. ClientID/ClientSecret are the tenant IAM pair.
// ---------------------------------------------------------------------------

// AuthenticateRequest asks the broker to verify a username and password.
type AuthenticateRequest struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

// SessionRequest carries an end-user access token together with the claims
// resolved for it. Used by the session-status and user-profile flows.
type SessionRequest struct {
	TenantID     string  `json:"tenant_id"`
	ClientID     string  `json:"client_id"`
	ClientSecret string  `json:"client_secret"`
	AccessToken  string  `json:"access_token"`
	Claims       []Claim `json:"claims"`
}

// ServiceAccountTokenRequest asks for the tenant's user-management service
// account token.
type ServiceAccountTokenRequest struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// EndSessionRequest revokes the session bound to a refresh token.
type EndSessionRequest struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// AuthorizeRequest starts the OAuth2 authorization code flow. It is public,
// so nothing in it comes from a claim.
type AuthorizeRequest struct {
	TenantID    string `json:"tenant_id"`
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
}

// TokenRequest exchanges a code or user credentials for tokens.
type TokenRequest struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// CredentialsRequest fetches the stored credentials for a resolved client.
type CredentialsRequest struct {
	Credentials Credentials `json:"credentials"`
}

// OIDCConfigurationRequest fetches discovery metadata for a client's tenant.
type OIDCConfigurationRequest struct {
	ClientID string `json:"client_id"`
}

// IntrospectRequest asks the broker for the session bound to an access token.
type IntrospectRequest struct {
	AccessToken string `json:"access_token"`
}

// ---------------------------------------------------------------------------
// Broker payloads
// ---------------------------------------------------------------------------

// Claim is a key/value pair attached to a token. Not to be confused with a
// CredentialClaim.
type Claim struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AuthToken is returned by the authenticate and service-account flows.
type AuthToken struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token,omitempty"`
	IDToken      string  `json:"id_token,omitempty"`
	TokenType    string  `json:"token_type,omitempty"`
	ExpiresIn    int64   `json:"expires_in,omitempty"`
	Claims       []Claim `json:"claims,omitempty"`
}

// SessionStatus reports whether an access token is bound to a live session.
type SessionStatus struct {
	Authenticated bool `json:"authenticated"`
}

// User is the profile of an authenticated end user.
type User struct {
	Sub          string `json:"sub"`
	FullName     string `json:"full_name,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	Username     string `json:"username"`
	ClientID     string `json:"client_id,omitempty"`
}

// OperationStatus reports the outcome of a state-changing broker operation.
type OperationStatus struct {
	Status bool `json:"status"`
}

// AuthorizationResponse is returned by the authorize flow.
type AuthorizationResponse struct {
	RedirectURI string `json:"redirect_uri"`
	Code        string `json:"code,omitempty"`
	State       string `json:"state,omitempty"`
}

// TokenResponse is returned by the token flow.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type"`
	IDToken          string `json:"id_token,omitempty"`
	NotBeforePolicy  int64  `json:"not-before-policy,omitempty"`
	SessionState     string `json:"session_state,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// Credentials is the full credential bundle stored for a platform client.
type Credentials struct {
	VedaClientID              string `json:"veda_client_id"`
	VedaClientSecret          string `json:"veda_client_secret"`
	VedaClientIDIssuedAt      int64  `json:"veda_client_id_issued_at"`
	VedaClientSecretExpiresAt int64  `json:"veda_client_secret_expires_at"`
	CILogonClientID           string `json:"ci_logon_client_id,omitempty"`
	CILogonClientSecret       string `json:"ci_logon_client_secret,omitempty"`
	IAMClientID               string `json:"iam_client_id"`
	IAMClientSecret           string `json:"iam_client_secret"`
}

// OIDCConfiguration is OpenID Connect discovery metadata for a tenant.
type OIDCConfiguration struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	EndSessionEndpoint                string   `json:"end_session_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
}

// TokenSession describes the session bound to an end-user access token, as
// reported by the broker's introspection endpoint.
type TokenSession struct {
	Active    bool   `json:"active"`
	Username  string `json:"username"`
	TenantID  string `json:"tenant_id"`
	ClientID  string `json:"client_id"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

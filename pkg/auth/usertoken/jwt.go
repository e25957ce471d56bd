package usertoken

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/ShivangMishra/veda-auth-central/pkg/api"
	"github.com/ShivangMishra/veda-auth-central/pkg/auth"
	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage"
)

// jwksRegisterTimeout bounds the first JWKS fetch.
const jwksRegisterTimeout = 5 * time.Second

// JWTConfig holds the JWT validator configuration.
type JWTConfig struct {
	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty, audience is not validated.
	Audience string

	// JWKSURL is the URL to fetch the JSON Web Key Set for signature verification.
	JWKSURL string

	// UserClaim names the claim holding the username. Default: "preferred_username".
	UserClaim string

	// TenantClaim names the claim holding the tenant id. Default: "tenant_id".
	TenantClaim string

	// ClientClaim names the claim holding the client the token was issued
	// to. Default: "azp".
	ClientClaim string

	// CacheTTL is the JWKS refresh interval. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

func (c *JWTConfig) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "preferred_username"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.ClientClaim == "" {
		c.ClientClaim = "azp"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 1 * time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// JWTValidator validates signed JWT access tokens against a JWKS endpoint.
type JWTValidator struct {
	config JWTConfig
	store  storage.CredentialStore
	jwks   *jwk.Cache

	mu         sync.Mutex
	registered bool
}

var _ auth.UserTokenValidator = (*JWTValidator)(nil)

// NewJWTValidator creates a validator that loads the token's client from
// store. The key set is refreshed in the background until ctx is done.
func NewJWTValidator(ctx context.Context, cfg JWTConfig, store storage.CredentialStore) (*JWTValidator, error) {
	cfg.applyDefaults()
	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(cfg.HTTPClient)))
	if err != nil {
		return nil, fmt.Errorf("creating JWKS cache: %w", err)
	}
	return &JWTValidator{config: cfg, store: store, jwks: cache}, nil
}

// ValidateUserToken verifies the token signature, issuer, audience and
// expiry, then resolves the client named by the client claim.
func (v *JWTValidator) ValidateUserToken(ctx context.Context, accessToken string) (*api.CredentialClaim, error) {
	token, err := jwtlib.Parse(accessToken, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}

		key, fetchErr := v.key(ctx, kid)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, fetchErr)
		}
		return key, nil
	}, v.parserOptions()...)
	if err != nil {
		debug.Log("auth", "JWT validation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidUserToken, err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid JWT claims", auth.ErrInvalidUserToken)
	}

	username := claimString(claims, v.config.UserClaim)
	if username == "" {
		return nil, fmt.Errorf("%w: JWT missing %q claim", auth.ErrInvalidUserToken, v.config.UserClaim)
	}

	claim, err := boundClaim(ctx, v.store,
		claimString(claims, v.config.ClientClaim),
		claimString(claims, v.config.TenantClaim))
	if err != nil {
		return nil, err
	}
	claim.Username = username
	return claim, nil
}

// parserOptions builds JWT parser options based on the configuration.
// Expiry is always required.
func (v *JWTValidator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(v.config.Audience))
	}
	return opts
}

// claimString extracts a string value from JWT claims.
// Returns empty string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// ensureRegistered registers the JWKS URL with the cache on first use. A
// failed registration is retried on the next token.
func (v *JWTValidator) ensureRegistered(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.registered {
		return nil
	}

	registerCtx, cancel := context.WithTimeout(ctx, jwksRegisterTimeout)
	defer cancel()
	err := v.jwks.Register(registerCtx, v.config.JWKSURL,
		jwk.WithMinInterval(v.config.CacheTTL),
		jwk.WithMaxInterval(v.config.CacheTTL),
	)
	if err != nil {
		return fmt.Errorf("registering JWKS URL: %w", err)
	}
	v.registered = true
	debug.Log("auth", "JWKS registered", "url", v.config.JWKSURL, "refresh", v.config.CacheTTL)
	return nil
}

// key returns the raw public key for kid. An unknown kid forces one refresh
// so rotated signing keys are picked up before the next scheduled fetch.
func (v *JWTValidator) key(ctx context.Context, kid string) (any, error) {
	if err := v.ensureRegistered(ctx); err != nil {
		return nil, err
	}

	set, err := v.jwks.Lookup(ctx, v.config.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("looking up JWKS: %w", err)
	}
	key, found := set.LookupKeyID(kid)
	if !found {
		if set, err = v.jwks.Refresh(ctx, v.config.JWKSURL); err != nil {
			return nil, fmt.Errorf("refreshing JWKS: %w", err)
		}
		if key, found = set.LookupKeyID(kid); !found {
			return nil, fmt.Errorf("key %q not found in JWKS", kid)
		}
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("exporting key %q: %w", kid, err)
	}
	return raw, nil
}

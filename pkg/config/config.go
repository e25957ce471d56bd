// Package config provides unified configuration for the identity gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (VEDA_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the identity gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Broker        BrokerConfig        `yaml:"broker"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Clients       []ClientConfig      `yaml:"clients"`
	Memberships   []MembershipConfig  `yaml:"memberships"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	BasePath        string        `yaml:"base_path"`        // e.g. "/api/v1", default: ""
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	MaxBodySize     int64         `yaml:"max_body_size"`    // bytes, default: 1 MiB
	CORSOrigins     []string      `yaml:"cors_origins"`     // empty disables CORS
}

// BrokerConfig holds the upstream identity broker connection.
type BrokerConfig struct {
	URL     string        `yaml:"url"`     // required
	Timeout time.Duration `yaml:"timeout"` // per call, default: 10s

	// OAuth2 client credentials for gateway-to-broker authentication.
	// Disabled when token_url is empty.
	TokenURL         string   `yaml:"token_url"`
	ClientID         string   `yaml:"client_id"`
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file"` // _file variant for client_secret
	Scopes           []string `yaml:"scopes"`
}

// StorageConfig holds the credential registry and membership store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// RedisConfig enables a read-through cache in front of the credential
// registry. The cache is disabled when addr is empty.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	PasswordFile string        `yaml:"password_file"` // _file variant for password
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"` // default: "veda:"
	TTL          time.Duration `yaml:"ttl"`        // default: 5m
}

// AuthConfig holds credential resolution settings.
type AuthConfig struct {
	UserToken UserTokenConfig `yaml:"user_token"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// UserTokenConfig selects how end-user access tokens are validated.
type UserTokenConfig struct {
	Mode string    `yaml:"mode"` // "introspect" or "jwt", default: "introspect"
	JWT  JWTConfig `yaml:"jwt"`
}

// JWTConfig holds settings for validating JWT access tokens.
type JWTConfig struct {
	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	JWKSURL     string        `yaml:"jwks_url"`
	UserClaim   string        `yaml:"user_claim"`   // default: "preferred_username"
	TenantClaim string        `yaml:"tenant_claim"` // default: "tenant_id"
	ClientClaim string        `yaml:"client_claim"` // default: "azp"
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // default: 1h
}

// RateLimitConfig holds per-tier request limits for platform clients.
type RateLimitConfig struct {
	Enabled bool                  `yaml:"enabled"`
	Default TierConfig            `yaml:"default"`
	Tiers   map[string]TierConfig `yaml:"tiers"`
}

// TierConfig is the limit of one client tier.
type TierConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// ClientConfig registers a platform client in the memory store. The json
// tags serve the VEDA_CLIENTS environment variable.
type ClientConfig struct {
	ClientID              string `yaml:"client_id" json:"client_id,omitempty"`
	ClientSecret          string `yaml:"client_secret" json:"client_secret,omitempty"`
	ClientSecretFile      string `yaml:"client_secret_file" json:"client_secret_file,omitempty"` // _file variant for client_secret
	TenantID              string `yaml:"tenant_id" json:"tenant_id,omitempty"`
	IssuedAt              int64  `yaml:"issued_at" json:"issued_at,omitempty"`
	SecretExpiresAt       int64  `yaml:"secret_expires_at" json:"secret_expires_at,omitempty"` // 0: never
	IAMClientID           string `yaml:"iam_client_id" json:"iam_client_id,omitempty"`
	IAMClientSecret       string `yaml:"iam_client_secret" json:"iam_client_secret,omitempty"`
	IAMClientSecretFile   string `yaml:"iam_client_secret_file" json:"iam_client_secret_file,omitempty"` // _file variant for iam_client_secret
	FederatedClientID     string `yaml:"federated_client_id" json:"federated_client_id,omitempty"`
	FederatedClientSecret string `yaml:"federated_client_secret" json:"federated_client_secret,omitempty"`
	Tier                  string `yaml:"tier" json:"tier,omitempty"`
}

// MembershipConfig seeds one group membership record.
type MembershipConfig struct {
	ID             string `yaml:"id"`
	TenantID       string `yaml:"tenant_id"`
	GroupID        string `yaml:"group_id"`
	UserProfileID  string `yaml:"user_profile_id"`
	MembershipType string `yaml:"membership_type"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // OTLP gRPC host:port
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"` // default: "veda-auth-central"
	SampleRatio float64 `yaml:"sample_ratio"` // default: 1
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error; default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Broker: BrokerConfig{
			Timeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
			Redis: RedisConfig{
				KeyPrefix: "veda:",
				TTL:       5 * time.Minute,
			},
		},
		Auth: AuthConfig{
			UserToken: UserTokenConfig{
				Mode: "introspect",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{
				ServiceName: "veda-auth-central",
				SampleRatio: 1,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

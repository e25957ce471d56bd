package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// broker.url is required and must be absolute.
	if c.Broker.URL == "" {
		errs = append(errs, fmt.Errorf("broker.url is required"))
	} else if u, err := url.Parse(c.Broker.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("broker.url must be an absolute URL, got %q", c.Broker.URL))
	}
	if c.Broker.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("broker.timeout must be > 0, got %v", c.Broker.Timeout))
	}
	if c.Broker.TokenURL != "" && c.Broker.ClientID == "" {
		errs = append(errs, fmt.Errorf("broker.client_id is required when broker.token_url is set"))
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if p := c.Server.BasePath; p != "" && (!strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/")) {
		errs = append(errs, fmt.Errorf("server.base_path must start with \"/\" and not end with one, got %q", p))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	switch c.Auth.UserToken.Mode {
	case "introspect":
		// valid
	case "jwt":
		if c.Auth.UserToken.JWT.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.user_token.jwt.jwks_url is required when auth.user_token.mode is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.user_token.mode must be \"introspect\" or \"jwt\", got %q", c.Auth.UserToken.Mode))
	}

	seen := make(map[string]bool, len(c.Clients))
	for i, cl := range c.Clients {
		prefix := fmt.Sprintf("clients[%d]", i)
		if cl.ClientID == "" {
			errs = append(errs, fmt.Errorf("%s.client_id is required", prefix))
		} else if seen[cl.ClientID] {
			errs = append(errs, fmt.Errorf("%s.client_id %q is registered twice", prefix, cl.ClientID))
		}
		seen[cl.ClientID] = true
		if cl.TenantID == "" {
			errs = append(errs, fmt.Errorf("%s.tenant_id is required", prefix))
		}
		if cl.ClientSecret == "" && cl.ClientSecretFile == "" {
			errs = append(errs, fmt.Errorf("%s.client_secret or client_secret_file is required", prefix))
		}
		if cl.IAMClientID == "" || (cl.IAMClientSecret == "" && cl.IAMClientSecretFile == "") {
			errs = append(errs, fmt.Errorf("%s.iam_client_id and iam_client_secret are required", prefix))
		}
		if cl.IssuedAt <= 0 {
			errs = append(errs, fmt.Errorf("%s.issued_at must be a positive unix time", prefix))
		}
		if (cl.FederatedClientID == "") != (cl.FederatedClientSecret == "") {
			errs = append(errs, fmt.Errorf("%s.federated_client_id and federated_client_secret must be set together", prefix))
		}
	}

	switch c.Observability.Logging.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("observability.logging.format must be \"text\" or \"json\", got %q", c.Observability.Logging.Format))
	}
	if r := c.Observability.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing.sample_ratio must be within [0, 1], got %v", r))
	}

	return errors.Join(errs...)
}

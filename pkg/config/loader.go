package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, VEDA_CONFIG env, ./config.yaml, /etc/veda/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. VEDA_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/veda/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("VEDA_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/veda/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps VEDA_* environment variables to config fields.
// Malformed numeric or duration values are reported, not ignored.
func applyEnvOverrides(cfg *Config) error {
	strVars := map[string]*string{
		"VEDA_BASE_PATH":            &cfg.Server.BasePath,
		"VEDA_BROKER_URL":           &cfg.Broker.URL,
		"VEDA_BROKER_TOKEN_URL":     &cfg.Broker.TokenURL,
		"VEDA_BROKER_CLIENT_ID":     &cfg.Broker.ClientID,
		"VEDA_BROKER_CLIENT_SECRET": &cfg.Broker.ClientSecret,
		"VEDA_STORAGE":              &cfg.Storage.Type,
		"VEDA_POSTGRES_DSN":         &cfg.Storage.Postgres.DSN,
		"VEDA_REDIS_ADDR":           &cfg.Storage.Redis.Addr,
		"VEDA_REDIS_PASSWORD":       &cfg.Storage.Redis.Password,
		"VEDA_USER_TOKEN_MODE":      &cfg.Auth.UserToken.Mode,
		"VEDA_JWT_JWKS_URL":         &cfg.Auth.UserToken.JWT.JWKSURL,
		"VEDA_JWT_ISSUER":           &cfg.Auth.UserToken.JWT.Issuer,
		"VEDA_OTLP_ENDPOINT":        &cfg.Observability.Tracing.Endpoint,
		"VEDA_LOG_FORMAT":           &cfg.Observability.Logging.Format,
	}
	for name, field := range strVars {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("VEDA_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VEDA_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("VEDA_BROKER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VEDA_BROKER_TIMEOUT: %w", err)
		}
		cfg.Broker.Timeout = d
	}
	if v := os.Getenv("VEDA_TRACING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VEDA_TRACING_ENABLED: %w", err)
		}
		cfg.Observability.Tracing.Enabled = enabled
	}

	// VEDA_CLIENTS: JSON array of client registrations.
	if v := os.Getenv("VEDA_CLIENTS"); v != "" {
		clients, err := parseClientsJSON(v)
		if err != nil {
			return err
		}
		cfg.Clients = clients
	}

	return nil
}

// parseClientsJSON parses a JSON array of client registrations. The JSON
// keys match the YAML keys.
func parseClientsJSON(jsonStr string) ([]ClientConfig, error) {
	var clients []ClientConfig
	if err := json.Unmarshal([]byte(jsonStr), &clients); err != nil {
		return nil, fmt.Errorf("parsing VEDA_CLIENTS JSON: %w", err)
	}
	return clients, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"broker.client_secret_file", cfg.Broker.ClientSecretFile, &cfg.Broker.ClientSecret},
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
		{"storage.redis.password_file", cfg.Storage.Redis.PasswordFile, &cfg.Storage.Redis.Password},
	}
	for i := range cfg.Clients {
		c := &cfg.Clients[i]
		refs = append(refs,
			struct {
				name  string
				file  string
				value *string
			}{fmt.Sprintf("clients[%d].client_secret_file", i), c.ClientSecretFile, &c.ClientSecret},
			struct {
				name  string
				file  string
				value *string
			}{fmt.Sprintf("clients[%d].iam_client_secret_file", i), c.IAMClientSecretFile, &c.IAMClientSecret},
		)
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Command server runs the veda identity gateway.
//
// Configuration is read from a YAML file (-config, VEDA_CONFIG,
// ./config.yaml or /etc/veda/config.yaml) with VEDA_* environment
// overrides. See pkg/config for the full set of options.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ShivangMishra/veda-auth-central/pkg/auth"
	"github.com/ShivangMishra/veda-auth-central/pkg/auth/clientsecret"
	"github.com/ShivangMishra/veda-auth-central/pkg/auth/usertoken"
	"github.com/ShivangMishra/veda-auth-central/pkg/broker"
	"github.com/ShivangMishra/veda-auth-central/pkg/config"
	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
	"github.com/ShivangMishra/veda-auth-central/pkg/gateway"
	"github.com/ShivangMishra/veda-auth-central/pkg/observability"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage/memory"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage/postgres"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage/rediscache"
	"github.com/ShivangMishra/veda-auth-central/pkg/transport"
	transporthttp "github.com/ShivangMishra/veda-auth-central/pkg/transport/http"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging := cfg.Observability.Logging
	debug.Init(logging.Debug, logging.Level, logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := cfg.Observability.Tracing
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingOptions{
		Enabled:     tracing.Enabled,
		Endpoint:    tracing.Endpoint,
		Insecure:    tracing.Insecure,
		ServiceName: tracing.ServiceName,
		Version:     version,
		SampleRatio: tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()

	creds, memberships, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := seedMemberships(ctx, memberships, cfg.Memberships); err != nil {
		return err
	}

	brokerClient := broker.NewClient(broker.Config{
		URL:          cfg.Broker.URL,
		Timeout:      cfg.Broker.Timeout,
		TokenURL:     cfg.Broker.TokenURL,
		ClientID:     cfg.Broker.ClientID,
		ClientSecret: cfg.Broker.ClientSecret,
		Scopes:       cfg.Broker.Scopes,
	})
	defer brokerClient.Close()

	tokens, err := buildUserTokenValidator(ctx, cfg.Auth.UserToken, brokerClient, creds)
	if err != nil {
		return fmt.Errorf("configuring user token validation: %w", err)
	}
	resolver := auth.NewResolver(
		auth.NewAuthChain(clientsecret.New(creds)),
		tokens,
		buildLimiter(cfg.Auth.RateLimit),
	)
	gw := gateway.New(resolver, brokerClient, slog.Default())

	checks := map[string]transport.HealthChecker{
		"credential_store": creds,
		"broker":           transport.HealthCheckFunc(brokerClient.HealthCheck),
	}

	srv := transporthttp.NewServer(gw, checks,
		transporthttp.WithConfig(transporthttp.Config{
			Addr:            ":" + strconv.Itoa(cfg.Server.Port),
			BasePath:        cfg.Server.BasePath,
			MaxBodySize:     cfg.Server.MaxBodySize,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			CORSOrigins:     cfg.Server.CORSOrigins,
			MetricsPath:     metricsPath(cfg.Observability.Metrics),
		}),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
	)

	slog.Info("gateway configured",
		"version", version,
		"broker", cfg.Broker.URL,
		"storage", cfg.Storage.Type,
		"credential_cache", cfg.Storage.Redis.Addr != "",
		"user_token", cfg.Auth.UserToken.Mode,
		"clients", len(cfg.Clients),
	)
	return srv.Run(ctx)
}

// buildStore opens the configured credential registry and membership
// store, seeds static clients and wraps the registry in the Redis cache
// when enabled. The returned func closes everything that was opened.
func buildStore(ctx context.Context, cfg *config.Config) (storage.CredentialStore, storage.MembershipStore, func(), error) {
	records := make([]storage.ClientRecord, 0, len(cfg.Clients))
	for _, c := range cfg.Clients {
		records = append(records, clientRecord(c))
	}

	var (
		creds       storage.CredentialStore
		writer      storage.ClientWriter
		memberships storage.MembershipStore
		closers     []func() error
	)

	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		creds, writer, memberships = pg, pg, pg
		closers = append(closers, pg.Close)
		slog.Info("storage enabled", "type", "postgres")
	default:
		mem := memory.New()
		creds, writer, memberships = mem, mem, mem
		slog.Info("storage enabled", "type", "memory")
	}

	if r := cfg.Storage.Redis; r.Addr != "" {
		cache, err := rediscache.New(ctx, rediscache.Options{
			Addr:      r.Addr,
			Username:  r.Username,
			Password:  r.Password,
			DB:        r.DB,
			KeyPrefix: r.KeyPrefix,
			TTL:       r.TTL,
		}, creds)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, nil, fmt.Errorf("connecting credential cache: %w", err)
		}
		// The cache closes the backing store with itself.
		creds, writer = cache, cache
		closers = []func() error{cache.Close}
		slog.Info("credential cache enabled", "addr", r.Addr, "ttl", r.TTL)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("closing store", "error", err)
			}
		}
	}

	// Seed through the outermost store so a cached copy of a changed record
	// is dropped before the first lookup.
	if err := seedClients(ctx, writer, records); err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	return creds, memberships, closeAll, nil
}

func seedClients(ctx context.Context, w storage.ClientWriter, records []storage.ClientRecord) error {
	for _, rec := range records {
		if err := w.PutClient(ctx, rec); err != nil {
			return fmt.Errorf("seeding client %s: %w", rec.ClientID, err)
		}
	}
	if len(records) > 0 {
		slog.Info("clients seeded", "count", len(records))
	}
	return nil
}

func clientRecord(c config.ClientConfig) storage.ClientRecord {
	return storage.ClientRecord{
		ClientID:              c.ClientID,
		ClientSecret:          c.ClientSecret,
		TenantID:              c.TenantID,
		ClientIDIssuedAt:      c.IssuedAt,
		ClientSecretExpiresAt: c.SecretExpiresAt,
		IAMClientID:           c.IAMClientID,
		IAMClientSecret:       c.IAMClientSecret,
		FederatedClientID:     c.FederatedClientID,
		FederatedClientSecret: c.FederatedClientSecret,
		Tier:                  c.Tier,
	}
}

// seedMemberships saves the configured memberships. Records that already
// exist are left alone so restarts against a persistent store succeed.
func seedMemberships(ctx context.Context, store storage.MembershipStore, seeds []config.MembershipConfig) error {
	for _, m := range seeds {
		err := store.Save(ctx, storage.Membership{
			ID:             m.ID,
			TenantID:       m.TenantID,
			GroupID:        m.GroupID,
			UserProfileID:  m.UserProfileID,
			MembershipType: m.MembershipType,
		})
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("seeding membership %s: %w", m.ID, err)
		}
	}
	if len(seeds) > 0 {
		slog.Info("memberships seeded", "count", len(seeds))
	}
	return nil
}

func buildUserTokenValidator(ctx context.Context, cfg config.UserTokenConfig, b *broker.Client, store storage.CredentialStore) (auth.UserTokenValidator, error) {
	if cfg.Mode == "jwt" {
		return usertoken.NewJWTValidator(ctx, usertoken.JWTConfig{
			Issuer:      cfg.JWT.Issuer,
			Audience:    cfg.JWT.Audience,
			JWKSURL:     cfg.JWT.JWKSURL,
			UserClaim:   cfg.JWT.UserClaim,
			TenantClaim: cfg.JWT.TenantClaim,
			ClientClaim: cfg.JWT.ClientClaim,
			CacheTTL:    cfg.JWT.CacheTTL,
		}, store)
	}
	return usertoken.NewIntrospector(b, store), nil
}

// buildLimiter returns nil when rate limiting is disabled.
func buildLimiter(cfg config.RateLimitConfig) auth.RateLimiter {
	if !cfg.Enabled {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(cfg.Tiers))
	for name, t := range cfg.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: t.RequestsPerMinute, Burst: t.Burst}
	}
	return auth.NewTokenBucketLimiter(tiers, auth.TierConfig{
		RequestsPerMinute: cfg.Default.RequestsPerMinute,
		Burst:             cfg.Default.Burst,
	})
}

func metricsPath(cfg config.MetricsConfig) string {
	if !cfg.Enabled {
		return ""
	}
	return cfg.Path
}

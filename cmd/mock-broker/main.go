// Command mock-broker runs a deterministic identity broker for local
// development and end-to-end testing of the gateway. Tokens are derived
// from usernames, so responses are predictable.
//
// Configuration:
//
//	MOCK_PORT    - Listen port (default: 9090)
//	MOCK_ISSUER  - Base URL of the advertised OIDC endpoints (default: http://localhost:9090)
//	MOCK_CLIENTS - Comma-separated client registrations, client_id:tenant_id:iam_client_id
//	MOCK_USERS   - Comma-separated users, tenant_id:username:password
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ShivangMishra/veda-auth-central/pkg/broker/brokertest"
)

func main() {
	port := envOrDefault("MOCK_PORT", "9090")
	issuer := envOrDefault("MOCK_ISSUER", "http://localhost:"+port)

	fake := brokertest.NewServer(issuer)
	for _, entry := range splitList(os.Getenv("MOCK_CLIENTS")) {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			slog.Warn("ignoring malformed client entry", "entry", entry)
			continue
		}
		iam := ""
		if len(parts) == 3 {
			iam = parts[2]
		}
		fake.AddClient(parts[0], parts[1], iam)
	}
	for _, entry := range splitList(os.Getenv("MOCK_USERS")) {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			slog.Warn("ignoring malformed user entry")
			continue
		}
		fake.AddUser(parts[0], parts[1], parts[2])
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock broker starting", "port", port, "issuer", issuer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock broker failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock broker shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

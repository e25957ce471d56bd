package integration

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ShivangMishra/veda-auth-central/pkg/observability"
	transporthttp "github.com/ShivangMishra/veda-auth-central/pkg/transport/http"
)

// clientC is used only by this file so backing store lookups can be
// counted exactly.
func TestCredentialCache(t *testing.T) {
	app := basicAuth("clientC", "secretC")
	hits := testutil.ToFloat64(observability.CredentialCacheTotal.WithLabelValues("hit"))

	for i := 0; i < 3; i++ {
		resp := send(t, http.MethodGet, testEnv.APIURL(transporthttp.PathServiceAccountToken), app, "")
		if body := readBody(t, resp); resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d: status = %d, body = %s", i, resp.StatusCode, body)
		}
	}

	if got := testEnv.Backing.Lookups("clientC"); got != 1 {
		t.Errorf("backing store lookups = %d, want 1", got)
	}
	if got := testutil.ToFloat64(observability.CredentialCacheTotal.WithLabelValues("hit")) - hits; got < 2 {
		t.Errorf("cache hits = %v, want at least 2", got)
	}

	key := testEnv.Config.Storage.Redis.KeyPrefix + "client:clientC"
	if !testEnv.Redis.Exists(key) {
		t.Fatalf("redis key %q not set", key)
	}
	if ttl := testEnv.Redis.TTL(key); ttl <= 0 || ttl > testEnv.Config.Storage.Redis.TTL {
		t.Errorf("ttl = %v, want within %v", ttl, testEnv.Config.Storage.Redis.TTL)
	}

	// Once the entry expires the backing store is consulted again.
	testEnv.Redis.FastForward(testEnv.Config.Storage.Redis.TTL + 1)
	resp := send(t, http.MethodGet, testEnv.APIURL(transporthttp.PathServiceAccountToken), app, "")
	readBody(t, resp)
	if got := testEnv.Backing.Lookups("clientC"); got != 2 {
		t.Errorf("backing store lookups after expiry = %d, want 2", got)
	}
}

func TestCachedCredentialsStillCheckSecret(t *testing.T) {
	// Warm the cache, then present a wrong secret.
	readBody(t, send(t, http.MethodGet, testEnv.APIURL(transporthttp.PathServiceAccountToken), basicAuth("clientC", "secretC"), ""))

	resp := send(t, http.MethodGet, testEnv.APIURL(transporthttp.PathServiceAccountToken), basicAuth("clientC", "secretA"), "")
	readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

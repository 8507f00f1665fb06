package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "admin@example.com", cfg.Auth.AdminEmail)
	assert.True(t, cfg.Auth.SeedAdmin)
	assert.Equal(t, "none", cfg.Blob.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Lockout.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Lockout.LockDuration)
	assert.False(t, cfg.Server.TrustProxyHeaders)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DYNFORMS_ADDR", ":9090")
	t.Setenv("DYNFORMS_TOKEN_TTL", "15m")
	t.Setenv("DYNFORMS_SEED_ADMIN", "false")
	t.Setenv("DYNFORMS_BLOB_DRIVER", "S3")
	t.Setenv("DYNFORMS_BLOB_S3_BUCKET", "evidence")
	t.Setenv("DYNFORMS_LOGIN_MAX_ATTEMPTS", "0")
	t.Setenv("DYNFORMS_TRUST_PROXY_HEADERS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.SeedAdmin)
	assert.Equal(t, "s3", cfg.Blob.Driver)
	assert.Equal(t, "evidence", cfg.Blob.S3Bucket)
	assert.Zero(t, cfg.Lockout.MaxAttempts)
	assert.True(t, cfg.Server.TrustProxyHeaders)
}

func TestFromEnv_Rejects(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":       {"DYNFORMS_CACHE_TTL", "soon"},
		"negative pool":      {"DYNFORMS_REDIS_POOL_SIZE", "-1"},
		"bad flag":           {"DYNFORMS_SEED_ADMIN", "sometimes"},
		"unknown blob":       {"DYNFORMS_BLOB_DRIVER", "ftp"},
		"s3 without bucket":  {"DYNFORMS_BLOB_DRIVER", "s3"},
		"unknown log format": {"DYNFORMS_LOG_FORMAT", "xml"},
		"bad lock duration":  {"DYNFORMS_LOGIN_LOCK_DURATION", "0s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), kv[0])
		})
	}
}

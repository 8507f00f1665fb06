package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration

	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	TrustProxyHeaders bool
}

// Database configures the PostgreSQL pool. An empty URL selects in-memory stores.
type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the latest-version cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
	SeedAdmin     bool
}

// Lockout throttles failed logins per (email, client address). Zero
// MaxAttempts disables it.
type Lockout struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// Blob selects where released file bytes are purged: none, memory or s3.
type Blob struct {
	Driver      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

type Log struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type Config struct {
	Server   Server
	Database Database
	Redis    RedisConfig
	Auth     Auth
	Lockout  Lockout
	Blob     Blob
	Log      Log
}

const DefaultJWTSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds the configuration from DYNFORMS_* variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, key+" must be a positive duration")
			return def
		}
		return d
	}
	num := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, key+" must be a non-negative integer")
			return def
		}
		return n
	}
	flag := func(key string, def bool) bool {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, key+" must be true or false")
			return def
		}
		return b
	}

	cfg := Config{
		Server: Server{
			Addr:              str("DYNFORMS_ADDR", ":8080"),
			ShutdownTimeout:   dur("DYNFORMS_SHUTDOWN_TIMEOUT", 10*time.Second),
			TrustProxyHeaders: flag("DYNFORMS_TRUST_PROXY_HEADERS", false),
		},
		Database: Database{
			URL:          os.Getenv("DYNFORMS_DATABASE_URL"),
			MaxOpenConns: num("DYNFORMS_DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: num("DYNFORMS_DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("DYNFORMS_REDIS_URL"),
			PoolSize:     num("DYNFORMS_REDIS_POOL_SIZE", 10),
			MinIdleConns: num("DYNFORMS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  dur("DYNFORMS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  dur("DYNFORMS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: dur("DYNFORMS_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     dur("DYNFORMS_CACHE_TTL", time.Minute),
		},
		Auth: Auth{
			JWTSigningKey: str("DYNFORMS_JWT_SIGNING_KEY", DefaultJWTSigningKey),
			JWTIssuer:     str("DYNFORMS_JWT_ISSUER", "dynforms"),
			JWTAudience:   str("DYNFORMS_JWT_AUDIENCE", "dynforms-clients"),
			TokenTTL:      dur("DYNFORMS_TOKEN_TTL", 2*time.Hour),
			AdminEmail:    str("DYNFORMS_ADMIN_EMAIL", "admin@example.com"),
			AdminPassword: str("DYNFORMS_ADMIN_PASSWORD", "ChangeMe123!"),
			SeedAdmin:     flag("DYNFORMS_SEED_ADMIN", true),
		},
		Lockout: Lockout{
			MaxAttempts:  num("DYNFORMS_LOGIN_MAX_ATTEMPTS", 5),
			Window:       dur("DYNFORMS_LOGIN_WINDOW", 15*time.Minute),
			LockDuration: dur("DYNFORMS_LOGIN_LOCK_DURATION", 15*time.Minute),
		},
		Blob: Blob{
			Driver:      strings.ToLower(str("DYNFORMS_BLOB_DRIVER", "none")),
			S3Bucket:    os.Getenv("DYNFORMS_BLOB_S3_BUCKET"),
			S3Region:    str("DYNFORMS_BLOB_S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("DYNFORMS_BLOB_S3_ENDPOINT"),
			S3PathStyle: flag("DYNFORMS_BLOB_S3_PATH_STYLE", false),
		},
		Log: Log{
			Level:      strings.ToLower(str("DYNFORMS_LOG_LEVEL", "info")),
			Format:     strings.ToLower(str("DYNFORMS_LOG_FORMAT", "json")),
			File:       os.Getenv("DYNFORMS_LOG_FILE"),
			MaxSizeMB:  num("DYNFORMS_LOG_MAX_SIZE_MB", 100),
			MaxBackups: num("DYNFORMS_LOG_MAX_BACKUPS", 3),
			MaxAgeDays: num("DYNFORMS_LOG_MAX_AGE_DAYS", 28),
		},
	}

	switch cfg.Blob.Driver {
	case "none", "memory":
	case "s3":
		if cfg.Blob.S3Bucket == "" {
			errs = append(errs, "DYNFORMS_BLOB_S3_BUCKET is required for the s3 blob driver")
		}
	default:
		errs = append(errs, "DYNFORMS_BLOB_DRIVER must be none, memory or s3")
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, "DYNFORMS_LOG_FORMAT must be json or text")
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

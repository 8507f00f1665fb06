package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"dynforms/internal/catalog/cache"
	cataloghandler "dynforms/internal/catalog/handler"
	catalogmetrics "dynforms/internal/catalog/metrics"
	catalogservice "dynforms/internal/catalog/service"
	catalogstore "dynforms/internal/catalog/store"
	"dynforms/internal/content/blob"
	s3blob "dynforms/internal/content/blob/s3"
	contentmetrics "dynforms/internal/content/metrics"
	contentservice "dynforms/internal/content/service"
	contentstore "dynforms/internal/content/store"
	evidencehandler "dynforms/internal/evidence/handler"
	evidencemetrics "dynforms/internal/evidence/metrics"
	evidenceservice "dynforms/internal/evidence/service"
	evidencestore "dynforms/internal/evidence/store"
	formshandler "dynforms/internal/forms/handler"
	formsmetrics "dynforms/internal/forms/metrics"
	formsservice "dynforms/internal/forms/service"
	formsstore "dynforms/internal/forms/store"
	httpapi "dynforms/internal/http"
	identityhandler "dynforms/internal/identity/handler"
	identityservice "dynforms/internal/identity/service"
	identitystore "dynforms/internal/identity/store"
	jwttoken "dynforms/internal/jwt_token"
	"dynforms/internal/platform/config"
	"dynforms/internal/platform/logger"
	"dynforms/internal/platform/metrics"
	"dynforms/internal/platform/postgres"
	platformredis "dynforms/internal/platform/redis"
	lockoutmetrics "dynforms/internal/ratelimit/metrics"
	lockoutmodels "dynforms/internal/ratelimit/models"
	lockoutservice "dynforms/internal/ratelimit/service"
	lockoutstore "dynforms/internal/ratelimit/store"
	"dynforms/pkg/platform/audit/publisher"
	auditmemory "dynforms/pkg/platform/audit/store/memory"
	auditpostgres "dynforms/pkg/platform/audit/store/postgres"
	"dynforms/pkg/platform/tx"
)

// repositories is one complete set of stores sharing a transaction manager.
type repositories struct {
	templates catalogservice.TemplateStore
	versions  interface {
		catalogservice.VersionStore
		formsservice.VersionReader
	}
	instances interface {
		formsservice.InstanceStore
		catalogservice.InstanceUsage
		evidenceservice.InstanceReader
	}
	steps    formsservice.StepStore
	evidence interface {
		evidenceservice.Store
		formsservice.EvidenceCascade
		contentservice.ReferenceFinder
	}
	files contentservice.FileStore
	users identityservice.UserStore
	audit publisher.Store
	tx    tx.Manager
	db    *sql.DB
}

func memoryRepositories() *repositories {
	templates := catalogstore.NewInMemoryTemplates()
	versions := catalogstore.NewInMemoryVersions()
	instances := formsstore.NewInMemoryInstances()
	steps := formsstore.NewInMemorySteps()
	evidence := evidencestore.NewInMemory()
	files := contentstore.NewInMemory()
	users := identitystore.NewInMemoryUsers()
	audits := auditmemory.NewInMemoryStore()
	return &repositories{
		templates: templates,
		versions:  versions,
		instances: instances,
		steps:     steps,
		evidence:  evidence,
		files:     files,
		users:     users,
		audit:     audits,
		tx:        tx.NewMemoryManager(templates, versions, instances, steps, evidence, files, users, audits),
	}
}

func postgresRepositories(db *sql.DB) *repositories {
	return &repositories{
		templates: catalogstore.NewPostgresTemplates(db),
		versions:  catalogstore.NewPostgresVersions(db),
		instances: formsstore.NewPostgresInstances(db),
		steps:     formsstore.NewPostgresSteps(db),
		evidence:  evidencestore.NewPostgres(db),
		files:     contentstore.NewPostgres(db),
		users:     identitystore.NewPostgresUsers(db),
		audit:     auditpostgres.New(db),
		tx:        postgres.NewTxManager(db),
		db:        db,
	}
}

// app is the fully wired process.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	repos    *repositories
	redis    *platformredis.Client

	identity *identityservice.Service
	catalog  *catalogservice.Service
	content  *contentservice.Service
	forms    *formsservice.Service
	evidence *evidenceservice.Service
	jwt      *jwttoken.JWTService

	closers []io.Closer
}

// setup loads configuration and the logger shared by every command.
func setup() (config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log, closer := logger.New(cfg.Log)
	if cfg.Auth.JWTSigningKey == config.DefaultJWTSigningKey {
		log.Warn("using the default JWT signing key; set DYNFORMS_JWT_SIGNING_KEY outside development")
	}
	return cfg, log, closer, nil
}

// openDatabase returns nil when no database URL is configured.
func openDatabase(ctx context.Context, cfg config.Database) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	return postgres.Open(ctx, cfg.URL, postgres.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db == nil {
		log.Warn("DYNFORMS_DATABASE_URL not set; using in-memory stores")
		a.repos = memoryRepositories()
	} else {
		a.closers = append(a.closers, db)
		if _, err := postgres.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.repos = postgresRepositories(db)
	}

	a.redis, err = platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if a.redis != nil {
		a.closers = append(a.closers, a.redis)
	}

	purger, err := newPurger(ctx, cfg.Blob)
	if err != nil {
		return nil, err
	}

	audits := publisher.NewPublisher(a.repos.audit)
	a.jwt = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	identityOpts := []identityservice.Option{
		identityservice.WithLogger(log),
		identityservice.WithMetrics(a.metrics),
		identityservice.WithAuditPublisher(audits),
		identityservice.WithTokenTTL(cfg.Auth.TokenTTL),
	}
	if cfg.Lockout.MaxAttempts > 0 {
		limiter, err := a.newLoginLimiter()
		if err != nil {
			return nil, err
		}
		identityOpts = append(identityOpts, identityservice.WithLoginLimiter(limiter))
	}
	a.identity = identityservice.New(a.repos.users, a.jwt, a.repos.tx, identityOpts...)

	catalogOpts := []catalogservice.Option{
		catalogservice.WithLogger(log),
		catalogservice.WithMetrics(catalogmetrics.New(a.registry)),
		catalogservice.WithAuditPublisher(audits),
	}
	if a.redis != nil {
		catalogOpts = append(catalogOpts, catalogservice.WithCache(
			cache.NewRedis(a.redis.Client, cfg.Redis.CacheTTL, cache.WithLogger(log)),
		))
	}
	a.catalog = catalogservice.New(a.repos.templates, a.repos.versions, a.repos.instances, a.repos.tx, catalogOpts...)

	a.content = contentservice.New(a.repos.files, a.repos.evidence,
		contentservice.WithLogger(log),
		contentservice.WithMetrics(contentmetrics.New(a.registry)),
		contentservice.WithPurger(purger),
		contentservice.WithAuditPublisher(audits),
	)
	a.evidence = evidenceservice.New(a.repos.evidence, a.repos.instances, a.content, a.repos.tx,
		evidenceservice.WithLogger(log),
		evidenceservice.WithMetrics(evidencemetrics.New(a.registry)),
		evidenceservice.WithAuditPublisher(audits),
	)
	a.forms = formsservice.New(a.repos.instances, a.repos.steps, a.repos.versions, a.repos.evidence, a.content, a.repos.tx,
		formsservice.WithLogger(log),
		formsservice.WithMetrics(formsmetrics.New(a.registry)),
		formsservice.WithAuditPublisher(audits),
	)
	return a, nil
}

// newLoginLimiter keeps lockouts in Redis when it is configured so every
// replica sees the same counts.
func (a *app) newLoginLimiter() (*lockoutservice.Service, error) {
	var store lockoutservice.Store = lockoutstore.NewInMemory()
	if a.redis != nil {
		store = lockoutstore.NewRedis(a.redis.Client)
	}
	return lockoutservice.New(store,
		lockoutservice.WithLogger(a.logger),
		lockoutservice.WithMetrics(lockoutmetrics.New(a.registry)),
		lockoutservice.WithConfig(lockoutmodels.Config{
			AttemptsPerWindow: a.cfg.Lockout.MaxAttempts,
			Window:            a.cfg.Lockout.Window,
			LockDuration:      a.cfg.Lockout.LockDuration,
		}),
	)
}

func newPurger(ctx context.Context, cfg config.Blob) (blob.Purger, error) {
	switch cfg.Driver {
	case "s3":
		return s3blob.New(ctx, s3blob.Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case "memory":
		return blob.NewMemory(), nil
	default:
		return blob.Noop{}, nil
	}
}

// Router builds the HTTP surface.
func (a *app) Router() http.Handler {
	checks := map[string]httpapi.HealthCheck{}
	if a.repos.db != nil {
		checks["postgres"] = a.repos.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	return httpapi.NewRouter(httpapi.Deps{
		Logger:    a.logger,
		Metrics:   a.metrics,
		Gatherer:  a.registry,
		Validator: a.jwt.Validator(),
		Checks:    checks,

		TrustProxyHeaders: a.cfg.Server.TrustProxyHeaders,
	}, httpapi.Handlers{
		Public: []httpapi.Registrar{
			identityhandler.New(a.identity, a.logger),
		},
		Protected: []httpapi.Registrar{
			cataloghandler.New(a.catalog, a.logger),
			formshandler.New(a.forms, a.logger),
			evidencehandler.New(a.evidence, a.logger),
		},
	})
}

// SeedAdmin creates the bootstrap admin when the user table is empty.
func (a *app) SeedAdmin(ctx context.Context) error {
	created, err := a.identity.SeedAdmin(ctx, a.cfg.Auth.AdminEmail, a.cfg.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		a.logger.InfoContext(ctx, "seeded admin user", "email", a.cfg.Auth.AdminEmail)
	} else {
		a.logger.InfoContext(ctx, "admin seed skipped; users already exist")
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

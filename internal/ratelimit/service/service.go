// Package service throttles repeated failed logins per (email, client IP).
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"go.opentelemetry.io/otel"

	"dynforms/internal/ratelimit/models"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/requestcontext"
)

var tracer = otel.Tracer("dynforms/ratelimit")

// Store persists lockout records. Get returns nil, nil for an unknown key.
type Store interface {
	Get(ctx context.Context, key models.Key) (*models.Lockout, error)
	RecordFailure(ctx context.Context, key models.Key, now time.Time, window time.Duration) (*models.Lockout, error)
	Lock(ctx context.Context, key models.Key, until time.Time) error
	Clear(ctx context.Context, key models.Key) error
}

type Metrics interface {
	IncFailures()
	IncLockouts()
	IncRejected()
	IncStoreErrors()
}

type Service struct {
	store   Store
	config  models.Config
	logger  *slog.Logger
	metrics Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConfig replaces the default policy. Non-positive durations keep their
// defaults; a non-positive attempt limit disables locking.
func WithConfig(cfg models.Config) Option {
	return func(s *Service) {
		s.config.AttemptsPerWindow = cfg.AttemptsPerWindow
		if cfg.Window > 0 {
			s.config.Window = cfg.Window
		}
		if cfg.LockDuration > 0 {
			s.config.LockDuration = cfg.LockDuration
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	s := &Service{store: store, config: models.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check rejects the attempt with CodeRateLimited while the key is locked.
// Store failures are logged and the attempt is allowed.
func (s *Service) Check(ctx context.Context, identifier, ip string) error {
	ctx, span := tracer.Start(ctx, "ratelimit.Check")
	defer span.End()

	key := models.NewKey(identifier, ip)
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		s.storeError(ctx, "get", err)
		return nil
	}
	now := requestcontext.Now(ctx)
	if !rec.IsLockedAt(now) {
		return nil
	}
	s.incRejected()
	wait := rec.LockedUntil.Sub(now)
	return dErrors.Wrap(&models.LockedError{Wait: wait}, dErrors.CodeRateLimited,
		"too many failed login attempts; try again later")
}

// RecordFailure counts a failed attempt and locks the key once the policy
// limit is reached. It reports whether this failure imposed the lock.
func (s *Service) RecordFailure(ctx context.Context, identifier, ip string) (bool, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.RecordFailure")
	defer span.End()

	key := models.NewKey(identifier, ip)
	now := requestcontext.Now(ctx)
	rec, err := s.store.RecordFailure(ctx, key, now, s.config.Window)
	if err != nil {
		s.storeError(ctx, "record_failure", err)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if s.metrics != nil {
		s.metrics.IncFailures()
	}
	if rec.IsLockedAt(now) || !rec.ShouldLock(s.config) {
		return false, nil
	}
	until := now.Add(s.config.LockDuration)
	if err := s.store.Lock(ctx, key, until); err != nil {
		s.storeError(ctx, "lock", err)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock login")
	}
	if s.metrics != nil {
		s.metrics.IncLockouts()
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "login locked",
			"ip", maskIP(ip),
			"failures", rec.Failures,
			"locked_until", until,
		)
	}
	return true, nil
}

// Clear forgets the failures for the key after a successful login.
func (s *Service) Clear(ctx context.Context, identifier, ip string) error {
	if err := s.store.Clear(ctx, models.NewKey(identifier, ip)); err != nil {
		s.storeError(ctx, "clear", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear login failures")
	}
	return nil
}

func (s *Service) incRejected() {
	if s.metrics != nil {
		s.metrics.IncRejected()
	}
}

func (s *Service) storeError(ctx context.Context, op string, err error) {
	if s.metrics != nil {
		s.metrics.IncStoreErrors()
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "lockout store failed", "op", op, "error", err)
	}
}

// maskIP zeroes the host part of an address for logging: the last octet of
// IPv4, the last 80 bits of IPv6.
func maskIP(raw string) string {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return ""
	}
	bits := 24
	if addr.Is6() && !addr.Is4In6() {
		bits = 48
	}
	prefix, err := addr.Unmap().Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.Addr().String()
}

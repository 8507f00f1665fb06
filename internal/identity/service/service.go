package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"dynforms/internal/identity/models"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/email"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/platform/device"
	"dynforms/pkg/platform/sentinel"
	"dynforms/pkg/platform/tx"
	"dynforms/pkg/requestcontext"
)

var tracer = otel.Tracer("dynforms/identity")

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Count(ctx context.Context) (int, error)
}

// TokenIssuer signs access tokens for authenticated principals.
type TokenIssuer interface {
	GenerateAccessToken(principal id.Principal, now time.Time, expiresIn time.Duration) (string, error)
}

// UserCounter counts created accounts.
type UserCounter interface {
	IncrementUsersCreated()
}

// LoginLimiter throttles repeated failed logins per email and client address.
type LoginLimiter interface {
	Check(ctx context.Context, identifier, ip string) error
	RecordFailure(ctx context.Context, identifier, ip string) (bool, error)
	Clear(ctx context.Context, identifier, ip string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service registers users, logs them in and bootstraps the first admin.
type Service struct {
	users          UserStore
	tokens         TokenIssuer
	tx             tx.Manager
	tokenTTL       time.Duration
	bcryptCost     int
	logger         *slog.Logger
	metrics        UserCounter
	auditPublisher AuditPublisher
	limiter        LoginLimiter

	dummyHash func() []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m UserCounter) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func WithLoginLimiter(l LoginLimiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithTokenTTL sets the access token lifetime. Defaults to two hours.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(users UserStore, tokens TokenIssuer, txm tx.Manager, opts ...Option) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		tx:         txm,
		tokenTTL:   2 * time.Hour,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	cost := s.bcryptCost
	s.dummyHash = sync.OnceValue(func() []byte {
		h, _ := bcrypt.GenerateFromPassword([]byte("dynforms-dummy-password"), cost)
		return h
	})
	return s
}

// Register creates a User-role account. Emails are unique case-insensitively.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "identity.Register")
	defer span.End()

	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	u, err := s.createUser(ctx, req.Email, req.Password, id.RoleUser)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, string(audit.EventUserRegistered), u.ID, "role", u.Role.String())
	return u, nil
}

// Login verifies the credentials and issues a bearer token. Unknown emails and
// wrong passwords fail identically; with a limiter configured, repeated
// failures from one address lock the email out for a while.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	ctx, span := tracer.Start(ctx, "identity.Login")
	defer span.End()

	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" || req.Password == "" {
		return nil, invalid
	}
	ip := requestcontext.ClientIP(ctx)
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, addr, ip); err != nil {
			return nil, err
		}
	}

	u, err := s.users.FindByEmail(ctx, addr)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(req.Password))
		s.loginFailed(ctx, addr, ip, id.UserID{}, "unknown_email")
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.loginFailed(ctx, addr, ip, u.ID, "bad_password")
		return nil, invalid
	}

	principal := id.Principal{UserID: u.ID, Role: u.Role}
	token, err := s.tokens.GenerateAccessToken(principal, requestcontext.Now(ctx), s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	if s.limiter != nil {
		if err := s.limiter.Clear(ctx, addr, ip); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to clear login failures", "error", err)
		}
	}
	s.logAudit(ctx, string(audit.EventLoginSucceeded), u.ID, clientAttrs(ctx)...)
	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		Role:        u.Role,
		UserID:      u.ID,
	}, nil
}

// loginFailed audits a failure and counts it against the lockout key. A
// limiter error is logged; the caller still sees invalid credentials.
func (s *Service) loginFailed(ctx context.Context, addr, ip string, userID id.UserID, reason string) {
	s.logAudit(ctx, string(audit.EventLoginFailed), userID, append(clientAttrs(ctx), "reason", reason)...)
	if s.limiter == nil {
		return
	}
	locked, err := s.limiter.RecordFailure(ctx, addr, ip)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to record login failure", "error", err)
		}
		return
	}
	if locked {
		s.logAudit(ctx, string(audit.EventLoginLocked), userID, clientAttrs(ctx)...)
	}
}

func clientAttrs(ctx context.Context) []any {
	ua := requestcontext.UserAgent(ctx)
	return []any{"device", device.DisplayName(ua), "mobile", device.IsMobile(ua)}
}

// SeedAdmin creates the bootstrap admin when no user exists yet. It reports
// whether a user was created; a populated store is left untouched.
func (s *Service) SeedAdmin(ctx context.Context, adminEmail, password string) (bool, error) {
	ctx, span := tracer.Start(ctx, "identity.SeedAdmin")
	defer span.End()

	addr, err := email.Normalize(adminEmail)
	if err != nil {
		return false, err
	}
	if err := models.ValidatePassword(password); err != nil {
		return false, err
	}

	var seeded *models.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		n, err := s.users.Count(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
		}
		if n > 0 {
			return nil
		}
		seeded, err = s.createUser(ctx, addr, password, id.RoleAdmin)
		return err
	})
	if err != nil {
		return false, err
	}
	if seeded == nil {
		return false, nil
	}
	s.logAudit(ctx, string(audit.EventAdminSeeded), seeded.ID, "email", seeded.Email)
	return true, nil
}

func (s *Service) createUser(ctx context.Context, addr, password string, role id.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	u := &models.User{
		ID:           id.UserID(uuid.New()),
		Email:        addr,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	if s.metrics != nil {
		s.metrics.IncrementUsersCreated()
	}
	return u, nil
}

func (s *Service) logAudit(ctx context.Context, event string, userID id.UserID, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if !userID.IsNil() {
		attributes = append(attributes, "user_id", userID.String())
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   userID.String(),
		Action:    event,
		RequestID: requestID,
	})
}

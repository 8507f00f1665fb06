// Package jwttoken signs and verifies the HS256 bearer tokens handed out at
// login.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
)

const defaultLeeway = 30 * time.Second

// Claims is the access token payload. Subject and UserID carry the same ID;
// Role is the caller's role at login time.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	leeway     time.Duration
}

type Option func(*JWTService)

// WithLeeway tolerates clock skew between the issuer and this validator.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) {
		if d >= 0 {
			s.leeway = d
		}
	}
}

func NewJWTService(signingKey, issuer, audience string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		leeway:     defaultLeeway,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateAccessToken signs a token for principal that is valid from now for
// expiresIn. Every token gets a fresh jti.
func (s *JWTService) GenerateAccessToken(principal id.Principal, now time.Time, expiresIn time.Duration) (string, error) {
	subject := principal.UserID.String()
	claims := Claims{
		UserID: subject,
		Role:   principal.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// ValidateToken verifies signature, issuer, audience and lifetime. Every
// failure is CodeUnauthorized; expiry gets its own message.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token is not valid yet")
	default:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
}

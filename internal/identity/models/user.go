package models

import (
	"strings"
	"time"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/email"
)

// User is an account that can authenticate against the API.
type User struct {
	ID           id.UserID `json:"user_id"`
	Email        string    `json:"email"`
	Role         id.Role   `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// bcrypt ignores input past 72 bytes; longer passwords are refused rather
// than silently truncated.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize lower-cases the email and checks the password bounds.
func (r RegisterRequest) Normalize() (RegisterRequest, error) {
	addr, err := email.Normalize(r.Email)
	if err != nil {
		return RegisterRequest{}, err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return RegisterRequest{}, err
	}
	return RegisterRequest{Email: addr, Password: r.Password}, nil
}

func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}
	if len(password) > MaxPasswordBytes {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at most 72 bytes")
	}
	if strings.TrimSpace(password) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password must not be blank")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	Role        id.Role   `json:"role"`
	UserID      id.UserID `json:"user_id"`
}

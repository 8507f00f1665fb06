package jwttoken

import (
	authmw "dynforms/pkg/platform/middleware/auth"
)

// Validator exposes s to the auth middleware, which only needs the user ID and
// role.
func (s *JWTService) Validator() authmw.JWTValidator {
	return middlewareValidator{s}
}

type middlewareValidator struct {
	service *JWTService
}

func (v middlewareValidator) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{UserID: claims.UserID, Role: claims.Role}, nil
}

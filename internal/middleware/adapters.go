package middleware

import (
	"context"

	"github.com/victoralfred/qrisk/internal/domain/auth"
)

// TokenServiceAdapter adapts auth.TokenService to the middleware TokenService
type TokenServiceAdapter struct {
	tokenService auth.TokenService
}

// NewTokenServiceAdapter creates a new token service adapter
func NewTokenServiceAdapter(tokenService auth.TokenService) *TokenServiceAdapter {
	return &TokenServiceAdapter{tokenService: tokenService}
}

// ValidateToken validates a token and returns the middleware claims
func (a *TokenServiceAdapter) ValidateToken(token string) (*TokenClaims, error) {
	claims, err := a.tokenService.ValidateToken(context.Background(), token)
	if err != nil {
		return nil, err
	}

	return &TokenClaims{
		UserID: claims.UserID,
		Roles:  claims.Roles,
	}, nil
}

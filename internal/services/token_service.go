package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/victoralfred/qrisk/internal/domain/auth"
)

// TokenService implements JWT token operations
type TokenService struct {
	secretKey   []byte
	issuer      string
	tokenExpiry time.Duration
	now         func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(secretKey, issuer string, tokenExpiry time.Duration) *TokenService {
	return &TokenService{
		secretKey:   []byte(secretKey),
		issuer:      issuer,
		tokenExpiry: tokenExpiry,
		now:         time.Now,
	}
}

// IssueToken signs an access token for a user
func (s *TokenService) IssueToken(userID string, roles []string) (string, error) {
	if userID == "" {
		return "", auth.ErrMissingSubject
	}
	now := s.now()

	claims := jwt.MapClaims{
		"sub":   userID,
		"roles": roles,
		"iss":   s.issuer,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(s.tokenExpiry).Unix(),
		"jti":   uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a token and returns the claims
func (s *TokenService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (interface{}, error) {
			return s.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, auth.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, auth.ErrInvalidToken
	}
	return s.mapToClaims(mapClaims)
}

// mapToClaims converts JWT MapClaims to our Claims struct
func (s *TokenService) mapToClaims(m jwt.MapClaims) (*auth.Claims, error) {
	subject, err := m.GetSubject()
	if err != nil || subject == "" {
		return nil, auth.ErrMissingSubject
	}

	claims := &auth.Claims{UserID: subject}
	claims.Issuer, _ = m.GetIssuer()
	claims.JTI, _ = m["jti"].(string)

	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	if rolesInterface, ok := m["roles"].([]interface{}); ok {
		for _, r := range rolesInterface {
			if role, ok := r.(string); ok {
				claims.Roles = append(claims.Roles, role)
			}
		}
	}
	return claims, nil
}

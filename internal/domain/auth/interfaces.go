package auth

import (
	"context"
	"time"
)

// TokenService defines the interface for bearer token operations
type TokenService interface {
	// IssueToken signs an access token for a user
	IssueToken(userID string, roles []string) (string, error)

	// ValidateToken validates a token and returns the claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// Claims are the verified contents of an access token
type Claims struct {
	UserID    string
	Roles     []string
	Issuer    string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

package auth

import "errors"

var (
	// ErrTokenExpired is returned when token has expired
	ErrTokenExpired = errors.New("token has expired")

	// ErrInvalidToken is returned when token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSubject is returned when a token carries no user id
	ErrMissingSubject = errors.New("token has no subject")
)

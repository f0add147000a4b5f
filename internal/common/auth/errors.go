package auth

import "errors"

// Authentication errors
var (
	// ErrInvalidToken indicates the token is malformed or its signature doesn't match.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrMissingToken indicates no bearer token was sent.
	ErrMissingToken = errors.New("authentication token is missing")

	// ErrInvalidCredentials indicates an email/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWeakSecret indicates the signing secret is too short.
	ErrWeakSecret = errors.New("jwt secret must be at least 32 characters")
)

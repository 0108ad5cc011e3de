package auth

import "errors"

var (
	// ErrInvalidToken indicates the token is malformed, has a bad signature or wrong claims.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token's iat or nbf claim is in the future.
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrWeakSecret is returned when the signing secret is shorter than MinSecretLength.
	ErrWeakSecret = errors.New("jwt secret must be at least 32 characters")
)

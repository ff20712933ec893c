package jwt

import "errors"

// Errors returned while issuing or verifying customer access tokens.
var (
	ErrMissingSigningKey       = errors.New("jwt: access token signing key is not configured")
	ErrInvalidToken            = errors.New("jwt: malformed access token")
	ErrExpiredToken            = errors.New("jwt: access token has expired")
	ErrInvalidClaims           = errors.New("jwt: access token does not identify a billing user")
	ErrInvalidSignature        = errors.New("jwt: access token signature mismatch")
	ErrUnexpectedSigningMethod = errors.New("jwt: access token is not signed with HS256")
)

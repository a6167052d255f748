package jwt

import "errors"

// Configuration errors.
var ErrMissingSigningKey = errors.New("jwt: missing signing key")

// Issuing errors.
var ErrMissingClaims = errors.New("jwt: user id is required to issue a token")

// Verification errors. Middleware answers 401 for all of them.
var (
	ErrInvalidToken            = errors.New("jwt: invalid token")
	ErrExpiredToken            = errors.New("jwt: token is expired")
	ErrInvalidSignature        = errors.New("jwt: invalid signature")
	ErrUnexpectedSigningMethod = errors.New("jwt: unexpected signing method")
	ErrInvalidClaims           = errors.New("jwt: subject is not a user id")
)

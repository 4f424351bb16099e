package tokens

import "errors"

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and type
	// mismatches (a refresh token presented where an access token is due).
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken means the embedded exp claim has elapsed.
	ErrExpiredToken = errors.New("token has expired")
)

package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/storefront/storeapi/internal/models"
)

func NewJTI() string { return uuid.NewString() }

// SignAccess mints a signed access token for the user. Each call generates a
// new jti; the returned claims carry it so the caller can record the token in
// the ledger.
func SignAccess(user *models.User, fresh bool, ttl time.Duration, secret []byte, now time.Time) (string, *AccessClaims, error) {
	claims := BuildAccessClaims(user, fresh)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   user.Username,
		ID:        NewJTI(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return signed, &claims, nil
}

func SignRefresh(user *models.User, ttl time.Duration, secret []byte, now time.Time) (string, *RefreshClaims, error) {
	claims := RefreshClaims{
		UserID:    user.ID,
		TokenType: models.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ID:        NewJTI(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, &claims, nil
}

// ParseAccess verifies the signature and expiry of an access token and
// returns its claims. Errors are collapsed into ErrExpiredToken and
// ErrInvalidToken; cryptographic detail stays out of user-facing paths.
func ParseAccess(raw string, secret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, keyFunc(secret))
	if err != nil {
		return nil, mapParseError(err)
	}
	if !tkn.Valid || claims.TokenType != models.TokenTypeAccess {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func ParseRefresh(raw string, secret []byte) (*RefreshClaims, error) {
	var claims RefreshClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, keyFunc(secret))
	if err != nil {
		return nil, mapParseError(err)
	}
	if !tkn.Valid || claims.TokenType != models.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// DecodeAccessUnverified reads claims without checking the signature or
// expiry. For revocation bookkeeping on tokens already verified upstream;
// never an authentication step.
func DecodeAccessUnverified(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &claims, nil
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}
}

func mapParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidToken, err)
}

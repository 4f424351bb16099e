package tokens

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/storefront/storeapi/internal/models"
)

// AccessClaims is the payload embedded in access tokens. The subject is the
// username; IsAdmin and Permissions are snapshotted from the user record at
// mint time and stay stable for the life of the token. Revocation is the only
// way to invalidate them early.
type AccessClaims struct {
	UserID      uint     `json:"uid"`
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions"`
	Fresh       bool     `json:"fresh"`
	TokenType   string   `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the identity. Refresh tokens have no freshness
// concept; the access token minted from one is always non-fresh.
type RefreshClaims struct {
	UserID    uint   `json:"uid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// BuildAccessClaims derives the claims payload from a user record. Admins get
// the full permission set, everyone else an empty one.
func BuildAccessClaims(user *models.User, fresh bool) AccessClaims {
	permissions := []string{}
	if user.IsAdmin {
		permissions = []string{"bar", "foo"}
	}
	return AccessClaims{
		UserID:      user.ID,
		IsAdmin:     user.IsAdmin,
		Permissions: permissions,
		Fresh:       fresh,
		TokenType:   models.TokenTypeAccess,
	}
}

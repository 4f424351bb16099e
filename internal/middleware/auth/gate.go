package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storeapi/internal/models"
	"github.com/storefront/storeapi/internal/service"
	"github.com/storefront/storeapi/internal/tokens"
)

var (
	// ErrRevokedToken means the ledger says revoked, or the jti has no row.
	ErrRevokedToken = errors.New("token has been revoked")
	// ErrUnknownIdentity means the subject claim resolves to no user.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrForbidden means the token is valid but lacks the admin claim.
	ErrForbidden = errors.New("admin privilege required")
	// ErrStaleToken means a fresh token is required and this one is not.
	ErrStaleToken = errors.New("fresh token required")
)

// Resolver maps a token subject to a user record. Returning (nil, nil) means
// the user no longer exists.
type Resolver func(ctx context.Context, subject string) (*models.User, error)

// MissingUserMode picks the status for a token whose subject resolves to no
// user. Some endpoints want a 404 distinct from an auth failure, others treat
// it as plain unauthorized.
type MissingUserMode int

const (
	MissingUserNotFound MissingUserMode = iota
	MissingUserUnauthorized
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"

	claimsKey        = "accessClaims"
	refreshClaimsKey = "refreshClaims"
	userKey          = "currentUser"
)

// Gate decodes presented tokens, consults the revocation oracle and resolves
// the subject before a protected handler runs.
type Gate struct {
	Tokens      *service.TokenService
	Resolve     Resolver
	MissingUser MissingUserMode
}

func NewGate(ts *service.TokenService, resolve Resolver) *Gate {
	return &Gate{Tokens: ts, Resolve: resolve, MissingUser: MissingUserNotFound}
}

// Option overrides gate behavior for a single route group.
type Option func(*gateConfig)

type gateConfig struct {
	missingUser MissingUserMode
}

// WithMissingUser sets how this route treats a token whose user is gone.
func WithMissingUser(mode MissingUserMode) Option {
	return func(cfg *gateConfig) { cfg.missingUser = mode }
}

func (g *Gate) config(opts []Option) gateConfig {
	cfg := gateConfig{missingUser: g.MissingUser}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RequireAuth admits requests carrying a valid, unrevoked access token whose
// subject still exists. Claims and user land in the echo context.
func (g *Gate) RequireAuth(opts ...Option) echo.MiddlewareFunc {
	cfg := g.config(opts)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := g.authenticate(c, cfg); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireFresh is RequireAuth plus the freshness claim. Tokens minted through
// the refresh flow can never pass.
func (g *Gate) RequireFresh(opts ...Option) echo.MiddlewareFunc {
	cfg := g.config(opts)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := g.authenticate(c, cfg); err != nil {
				return err
			}
			if !ClaimsFrom(c).Fresh {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrStaleToken.Error())
			}
			return next(c)
		}
	}
}

// RequireAdmin is RequireAuth plus the is_admin claim, read from the token
// and never from a live user lookup. A flag flipped after issuance is not
// seen until the outstanding tokens expire or are revoked.
func (g *Gate) RequireAdmin(opts ...Option) echo.MiddlewareFunc {
	cfg := g.config(opts)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := g.authenticate(c, cfg); err != nil {
				return err
			}
			if !ClaimsFrom(c).IsAdmin {
				return echo.NewHTTPError(http.StatusForbidden, ErrForbidden.Error())
			}
			return next(c)
		}
	}
}

// RequireRefresh admits requests carrying a valid, unrevoked refresh token.
func (g *Gate) RequireRefresh(opts ...Option) echo.MiddlewareFunc {
	cfg := g.config(opts)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractToken(c, refreshCookie)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
			}

			claims, err := tokens.ParseRefresh(raw, g.Tokens.RefreshSecret)
			if err != nil {
				return parseHTTPError(err)
			}

			revoked, err := g.Tokens.IsRevoked(c.Request().Context(), claims.ID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			if revoked {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrRevokedToken.Error())
			}

			user, err := g.resolveSubject(c, claims.Subject, cfg)
			if err != nil {
				return err
			}

			c.Set(refreshClaimsKey, claims)
			c.Set(userKey, user)
			return next(c)
		}
	}
}

// OptionalAuth resolves the caller when a valid access token is present and
// lets the request through anonymously otherwise.
func (g *Gate) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractToken(c, accessCookie)
			if raw == "" {
				return next(c)
			}
			claims, err := tokens.ParseAccess(raw, g.Tokens.AccessSecret)
			if err != nil {
				return next(c)
			}
			revoked, err := g.Tokens.IsRevoked(c.Request().Context(), claims.ID)
			if err != nil || revoked {
				return next(c)
			}
			user, err := g.Resolve(c.Request().Context(), claims.Subject)
			if err != nil || user == nil {
				return next(c)
			}
			c.Set(claimsKey, claims)
			c.Set(userKey, user)
			return next(c)
		}
	}
}

func (g *Gate) authenticate(c echo.Context, cfg gateConfig) error {
	raw := extractToken(c, accessCookie)
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	// Signature and expiry first, then the revocation oracle, then the
	// identity lookup. Each failure stops the chain.
	claims, err := tokens.ParseAccess(raw, g.Tokens.AccessSecret)
	if err != nil {
		return parseHTTPError(err)
	}

	revoked, err := g.Tokens.IsRevoked(c.Request().Context(), claims.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if revoked {
		return echo.NewHTTPError(http.StatusUnauthorized, ErrRevokedToken.Error())
	}

	user, err := g.resolveSubject(c, claims.Subject, cfg)
	if err != nil {
		return err
	}

	c.Set(claimsKey, claims)
	c.Set(userKey, user)
	return nil
}

func (g *Gate) resolveSubject(c echo.Context, subject string, cfg gateConfig) (*models.User, error) {
	user, err := g.Resolve(c.Request().Context(), subject)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if user == nil {
		if cfg.missingUser == MissingUserUnauthorized {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, ErrUnknownIdentity.Error())
		}
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("User %s not found", subject))
	}
	return user, nil
}

func parseHTTPError(err error) error {
	if errors.Is(err, tokens.ErrExpiredToken) {
		return echo.NewHTTPError(http.StatusUnauthorized, tokens.ErrExpiredToken.Error())
	}
	return echo.NewHTTPError(http.StatusUnauthorized, tokens.ErrInvalidToken.Error())
}

func extractToken(c echo.Context, cookieName string) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// ClaimsFrom returns the access claims stored by the gate, or nil.
func ClaimsFrom(c echo.Context) *tokens.AccessClaims {
	if v, ok := c.Get(claimsKey).(*tokens.AccessClaims); ok {
		return v
	}
	return nil
}

// RefreshClaimsFrom returns the refresh claims stored by the gate, or nil.
func RefreshClaimsFrom(c echo.Context) *tokens.RefreshClaims {
	if v, ok := c.Get(refreshClaimsKey).(*tokens.RefreshClaims); ok {
		return v
	}
	return nil
}

// CurrentUser returns the resolved user stored by the gate, or nil for
// anonymous requests behind OptionalAuth.
func CurrentUser(c echo.Context) *models.User {
	if v, ok := c.Get(userKey).(*models.User); ok {
		return v
	}
	return nil
}

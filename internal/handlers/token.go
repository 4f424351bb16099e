package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/storefront/storeapi/internal/middleware/auth"
	"github.com/storefront/storeapi/internal/service"
)

type TokenHandler struct {
	Tokens *service.TokenService
}

// Refresh mints a new access token from a verified refresh token. No password
// is checked here, so the resulting token is non-fresh and cannot reach
// fresh-required endpoints.
func (h *TokenHandler) Refresh(c echo.Context) error {
	user := authmw.CurrentUser(c)

	access, expiresAt, err := h.Tokens.Refresh(c.Request().Context(), user)
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not refresh token")
	}

	c.SetCookie(CreateCookie("accessToken", access, "/", expiresAt))

	return c.JSON(http.StatusOK, echo.Map{
		"refresh":      true,
		"access_token": access,
	})
}

// List returns every ledger record for the caller, revoked and live alike.
func (h *TokenHandler) List(c echo.Context) error {
	claims := authmw.ClaimsFrom(c)

	records, err := h.Tokens.ListTokens(c.Request().Context(), claims.Subject)
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not list tokens")
	}
	return c.JSON(http.StatusOK, records)
}

// Prune deletes expired ledger rows. Fresh token plus admin claim required;
// the claim comes from the token, not a live lookup.
func (h *TokenHandler) Prune(c echo.Context) error {
	if !authmw.ClaimsFrom(c).IsAdmin {
		return message(c, http.StatusForbidden, "Admin privilege required")
	}

	deleted, err := h.Tokens.Prune(c.Request().Context())
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not prune tokens")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Expired tokens deleted",
		"deleted": deleted,
	})
}

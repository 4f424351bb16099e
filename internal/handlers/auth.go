package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storeapi/internal/events"
	"github.com/storefront/storeapi/internal/hash"
	"github.com/storefront/storeapi/internal/ledger"
	"github.com/storefront/storeapi/internal/metrics"
	authmw "github.com/storefront/storeapi/internal/middleware/auth"
	"github.com/storefront/storeapi/internal/models"
	"github.com/storefront/storeapi/internal/repo"
	"github.com/storefront/storeapi/internal/service"
)

type AuthHandler struct {
	Users    *repo.UserRepo
	Tokens   *service.TokenService
	Producer *events.Producer
	Metrics  *metrics.Metrics
}

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "Missing JSON in request")
	}
	if req.Username == "" || req.Password == "" || req.Name == "" {
		return message(c, http.StatusBadRequest, "name, username and password cannot be blank")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return message(c, http.StatusInternalServerError, "An error occurred creating the user.")
	}

	user := models.User{
		Name:         req.Name,
		Username:     req.Username,
		PasswordHash: pwHash,
		IsAdmin:      req.IsAdmin,
	}
	if err := h.Users.Create(c.Request().Context(), &user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExists) {
			return message(c, http.StatusBadRequest, "A user with that username already exists")
		}
		return message(c, http.StatusInternalServerError, "An error occurred creating the user.")
	}

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return message(c, http.StatusCreated, "User created successfully.")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies the password and issues a fresh access token plus a refresh
// token, both registered in the ledger.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusUnprocessableEntity, "Missing JSON in request")
	}

	user, err := h.Users.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidCredentials) {
			h.Metrics.IncLogin("rejected")
			return message(c, http.StatusUnauthorized, "Wrong credentials")
		}
		return message(c, http.StatusInternalServerError, "internal server error")
	}

	result, err := h.Tokens.Issue(c.Request().Context(), user, true)
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not issue tokens")
	}
	h.Metrics.IncLogin("ok")

	c.SetCookie(CreateCookie("accessToken", result.AccessToken, "/", result.AccessExpiresAt))
	c.SetCookie(CreateCookie("refreshToken", result.RefreshToken, "/", result.RefreshExpiresAt))

	publish(c, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message":       fmt.Sprintf("Logged in as %s", user.Username),
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user_id":       user.ID,
		"is_admin":      result.IsAdmin,
	})
}

// LogoutAccess revokes the access token the request authenticated with.
func (h *AuthHandler) LogoutAccess(c echo.Context) error {
	claims := authmw.ClaimsFrom(c)
	return h.logout(c, claims.ID, claims.Subject)
}

// LogoutRefresh revokes the refresh token the request authenticated with.
func (h *AuthHandler) LogoutRefresh(c echo.Context) error {
	claims := authmw.RefreshClaimsFrom(c)
	return h.logout(c, claims.ID, claims.Subject)
}

func (h *AuthHandler) logout(c echo.Context, jti, identity string) error {
	if err := h.Tokens.Revoke(c.Request().Context(), jti, identity); err != nil {
		if errors.Is(err, ledger.ErrTokenNotFound) {
			return message(c, http.StatusNotFound, "The specified token was not found")
		}
		return message(c, http.StatusInternalServerError, "could not revoke token")
	}

	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))

	publish(c, h.Producer, events.TopicTokenEvents, identity, map[string]any{
		"type":     "token_revoked",
		"jti":      jti,
		"identity": identity,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Successfully logged out",
		"logout":  true,
	})
}

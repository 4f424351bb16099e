package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/storefront/storeapi/internal/middleware/auth"
	"github.com/storefront/storeapi/internal/repo"
)

type UserHandler struct {
	Users *repo.UserRepo
}

func (h *UserHandler) Get(c echo.Context) error {
	username := c.Param("username")

	user, err := h.Users.FindByUsername(c.Request().Context(), username)
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not load user")
	}
	if user == nil {
		return message(c, http.StatusNotFound,
			fmt.Sprintf("User with username %s not found", username))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.Name,
		"claims":   authmw.ClaimsFrom(c),
	})
}

func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.Users.Delete(c.Request().Context(), c.Param("username")); err != nil {
		return message(c, http.StatusInternalServerError, "could not delete user")
	}
	return message(c, http.StatusOK, "User deleted")
}

func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Users.FindAll(c.Request().Context())
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not list users")
	}

	if authmw.CurrentUser(c) != nil {
		return c.JSON(http.StatusOK, echo.Map{"users": users})
	}

	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users":   names,
		"message": "More data available if logged in",
	})
}

func (h *UserHandler) DeleteAll(c echo.Context) error {
	deleted, err := h.Users.DeleteAll(c.Request().Context())
	if err != nil {
		return message(c, http.StatusInternalServerError, "Something went wrong")
	}
	return message(c, http.StatusOK, fmt.Sprintf("%d row(s) deleted", deleted))
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storeapi/internal/events"
	authmw "github.com/storefront/storeapi/internal/middleware/auth"
	"github.com/storefront/storeapi/internal/models"
	"github.com/storefront/storeapi/internal/repo"
)

type StoreHandler struct {
	Stores   *repo.StoreRepo
	Items    *repo.ItemRepo
	Producer *events.Producer
}

func (h *StoreHandler) storeJSON(c echo.Context, store *models.Store) (echo.Map, error) {
	items, err := h.Items.FindItemsByStore(c.Request().Context(), store.ID)
	if err != nil {
		return nil, err
	}
	return echo.Map{"id": store.ID, "name": store.Name, "items": items}, nil
}

func (h *StoreHandler) Get(c echo.Context) error {
	store, err := h.Stores.FindByName(c.Request().Context(), c.Param("name"))
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not load store")
	}
	if store == nil {
		return message(c, http.StatusNotFound, "Store not found")
	}

	body, err := h.storeJSON(c, store)
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not load store items")
	}
	return c.JSON(http.StatusOK, body)
}

func (h *StoreHandler) Create(c echo.Context) error {
	name := c.Param("name")

	store := models.Store{Name: name}
	if err := h.Stores.Create(c.Request().Context(), &store); err != nil {
		if errors.Is(err, repo.ErrStoreAlreadyExists) {
			return message(c, http.StatusBadRequest,
				fmt.Sprintf("A store with name '%s' already exists.", name))
		}
		return message(c, http.StatusInternalServerError, "An error occurred creating the store.")
	}

	publish(c, h.Producer, events.TopicStoreEvents, name, map[string]any{
		"type":     "store_created",
		"store_id": store.ID,
		"name":     store.Name,
	})

	return c.JSON(http.StatusCreated, echo.Map{"id": store.ID, "name": store.Name, "items": []models.Item{}})
}

// Delete removes a store. Fresh token required by the route; the admin claim
// is read from the token here, so a demoted admin keeps the ability until
// their tokens expire or are revoked.
func (h *StoreHandler) Delete(c echo.Context) error {
	if !authmw.ClaimsFrom(c).IsAdmin {
		return message(c, http.StatusForbidden, "Admin privilege required")
	}

	name := c.Param("name")
	if err := h.Stores.Delete(c.Request().Context(), name); err != nil {
		return message(c, http.StatusInternalServerError, "could not delete store")
	}

	publish(c, h.Producer, events.TopicStoreEvents, name, map[string]any{
		"type": "store_deleted",
		"name": name,
	})

	return message(c, http.StatusOK, "Store deleted")
}

// List shows full store objects to authenticated callers and bare names to
// anonymous ones.
func (h *StoreHandler) List(c echo.Context) error {
	stores, err := h.Stores.FindAll(c.Request().Context())
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not list stores")
	}

	if authmw.CurrentUser(c) != nil {
		full := make([]echo.Map, 0, len(stores))
		for i := range stores {
			body, err := h.storeJSON(c, &stores[i])
			if err != nil {
				return message(c, http.StatusInternalServerError, "could not load store items")
			}
			full = append(full, body)
		}
		return c.JSON(http.StatusOK, echo.Map{"stores": full})
	}

	names := make([]string, 0, len(stores))
	for _, s := range stores {
		names = append(names, s.Name)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"stores":  names,
		"message": "More data available if logged in",
	})
}

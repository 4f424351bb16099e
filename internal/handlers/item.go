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

type ItemHandler struct {
	Items    *repo.ItemRepo
	Producer *events.Producer
}

type itemRequest struct {
	Price   float64 `json:"price"`
	StoreID uint    `json:"store_id"`
}

func (h *ItemHandler) Get(c echo.Context) error {
	item, err := h.Items.FindByName(c.Request().Context(), c.Param("name"))
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not load item")
	}
	if item == nil {
		return message(c, http.StatusNotFound, "Item not found")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) Create(c echo.Context) error {
	name := c.Param("name")

	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "price and store_id are required")
	}

	item := models.Item{Name: name, Price: req.Price, StoreID: req.StoreID}
	if err := h.Items.Create(c.Request().Context(), &item); err != nil {
		if errors.Is(err, repo.ErrItemAlreadyExists) {
			return message(c, http.StatusBadRequest,
				fmt.Sprintf("An item with name '%s' already exists.", name))
		}
		return message(c, http.StatusInternalServerError, "An error occurred inserting the item.")
	}

	publish(c, h.Producer, events.TopicStoreEvents, name, map[string]any{
		"type":     "item_created",
		"item_id":  item.ID,
		"name":     item.Name,
		"store_id": item.StoreID,
	})

	return c.JSON(http.StatusCreated, item)
}

// Put upserts an item: an existing one gets the new price, a missing one is
// created with the full body.
func (h *ItemHandler) Put(c echo.Context) error {
	name := c.Param("name")

	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "price and store_id are required")
	}

	item, err := h.Items.FindByName(c.Request().Context(), name)
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not load item")
	}

	if item == nil {
		item = &models.Item{Name: name, Price: req.Price, StoreID: req.StoreID}
		if err := h.Items.Create(c.Request().Context(), item); err != nil {
			return message(c, http.StatusInternalServerError, "An error occurred inserting the item.")
		}
		return c.JSON(http.StatusCreated, item)
	}

	item.Price = req.Price
	if err := h.Items.Save(c.Request().Context(), item); err != nil {
		return message(c, http.StatusInternalServerError, "An error occurred updating the item.")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) Delete(c echo.Context) error {
	if !authmw.ClaimsFrom(c).IsAdmin {
		return message(c, http.StatusForbidden, "Admin privilege required")
	}

	name := c.Param("name")
	if err := h.Items.Delete(c.Request().Context(), name); err != nil {
		return message(c, http.StatusInternalServerError, "could not delete item")
	}

	publish(c, h.Producer, events.TopicStoreEvents, name, map[string]any{
		"type": "item_deleted",
		"name": name,
	})

	return message(c, http.StatusOK, "Item deleted")
}

func (h *ItemHandler) List(c echo.Context) error {
	items, err := h.Items.FindAll(c.Request().Context())
	if err != nil {
		return message(c, http.StatusInternalServerError, "could not list items")
	}

	if authmw.CurrentUser(c) != nil {
		return c.JSON(http.StatusOK, echo.Map{"items": items})
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":   names,
		"message": "More data available if logged in",
	})
}

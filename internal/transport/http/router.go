package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storefront/storeapi/internal/handlers"
	authmw "github.com/storefront/storeapi/internal/middleware/auth"
)

type Deps struct {
	Gate          *authmw.Gate
	AuthHandler   *handlers.AuthHandler
	TokenHandler  *handlers.TokenHandler
	StoreHandler  *handlers.StoreHandler
	ItemHandler   *handlers.ItemHandler
	UserHandler   *handlers.UserHandler
	SearchHandler *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := d.Gate
	api := e.Group("/api")

	api.POST("/register", d.AuthHandler.Register)
	api.POST("/auth", d.AuthHandler.Login)
	api.DELETE("/logout/access", d.AuthHandler.LogoutAccess, g.RequireAuth())
	api.DELETE("/logout/refresh", d.AuthHandler.LogoutRefresh, g.RequireRefresh())

	api.POST("/token/refresh", d.TokenHandler.Refresh, g.RequireRefresh())
	api.GET("/token", d.TokenHandler.List, g.RequireAuth())
	api.DELETE("/token", d.TokenHandler.Prune, g.RequireFresh())

	api.GET("/store/:name", d.StoreHandler.Get, g.RequireAuth())
	api.POST("/store/:name", d.StoreHandler.Create, g.RequireFresh())
	api.DELETE("/store/:name", d.StoreHandler.Delete, g.RequireFresh())
	api.GET("/stores", d.StoreHandler.List, g.OptionalAuth())

	api.GET("/item/:name", d.ItemHandler.Get, g.RequireAuth())
	api.POST("/item/:name", d.ItemHandler.Create, g.RequireAuth())
	api.PUT("/item/:name", d.ItemHandler.Put, g.RequireAuth())
	api.DELETE("/item/:name", d.ItemHandler.Delete, g.RequireFresh())
	api.GET("/items", d.ItemHandler.List, g.OptionalAuth())

	// Deleting a user is an admin action; missing-user on the token subject
	// reads as unauthorized here rather than 404.
	api.GET("/user/:username", d.UserHandler.Get, g.RequireAuth())
	api.DELETE("/user/:username", d.UserHandler.Delete,
		g.RequireAdmin(authmw.WithMissingUser(authmw.MissingUserUnauthorized)))
	api.GET("/users", d.UserHandler.List, g.OptionalAuth())
	api.DELETE("/users", d.UserHandler.DeleteAll,
		g.RequireAdmin(authmw.WithMissingUser(authmw.MissingUserUnauthorized)))

	if d.SearchHandler != nil {
		api.GET("/search", d.SearchHandler.Search)
	}
}

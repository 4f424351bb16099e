package main

import (
	"context"
	"log"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/storefront/storeapi/internal/config"
	"github.com/storefront/storeapi/internal/es"
	"github.com/storefront/storeapi/internal/events"
	"github.com/storefront/storeapi/internal/handlers"
	"github.com/storefront/storeapi/internal/ledger"
	"github.com/storefront/storeapi/internal/logging"
	"github.com/storefront/storeapi/internal/metrics"
	authmw "github.com/storefront/storeapi/internal/middleware/auth"
	"github.com/storefront/storeapi/internal/models"
	"github.com/storefront/storeapi/internal/repo"
	"github.com/storefront/storeapi/internal/service"
	httpserver "github.com/storefront/storeapi/internal/transport/http"
	"github.com/storefront/storeapi/pkg/db"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LOG_LEVEL)
	ctx := logging.IntoContext(context.Background(), logger)

	gormDB, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		logger.Error("database open failed", "error", err)
		log.Fatal(err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("migration failed", "error", err)
		log.Fatal(err)
	}

	m := metrics.New()

	var producer *events.Producer
	if cfg.KAFKA_ADDRESS != "" {
		producer = events.NewProducer(strings.Split(cfg.KAFKA_ADDRESS, ","))
		defer producer.Close()
	}

	users := repo.NewUserRepo(gormDB)
	stores := repo.NewStoreRepo(gormDB)
	items := repo.NewItemRepo(gormDB)

	tokenSvc := service.NewTokenService(
		ledger.New(gormDB),
		[]byte(cfg.JWT_SECRET),
		[]byte(cfg.REFRESH_SECRET),
		m,
	)

	resolver := func(ctx context.Context, subject string) (*models.User, error) {
		return users.FindByUsername(ctx, subject)
	}
	gate := authmw.NewGate(tokenSvc, resolver)

	deps := &httpserver.Deps{
		Gate:         gate,
		AuthHandler:  &handlers.AuthHandler{Users: users, Tokens: tokenSvc, Producer: producer, Metrics: m},
		TokenHandler: &handlers.TokenHandler{Tokens: tokenSvc},
		StoreHandler: &handlers.StoreHandler{Stores: stores, Items: items, Producer: producer},
		ItemHandler:  &handlers.ItemHandler{Items: items, Producer: producer},
		UserHandler:  &handlers.UserHandler{Users: users},
	}

	if cfg.ES_URL != "" {
		esClient, err := es.NewClient(cfg)
		if err != nil {
			logger.Error("elasticsearch unavailable, search disabled", "error", err)
		} else {
			deps.SearchHandler = handlers.NewSearchHandler(esClient, cfg.ES_INDEX)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	httpserver.Register(e, deps)

	logger.Info("starting server", "addr", cfg.HTTP_ADDR)
	if err := e.Start(cfg.HTTP_ADDR); err != nil {
		logger.Error("server stopped", "error", err)
		log.Fatal(err)
	}
}

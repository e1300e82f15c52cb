package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/anasbld/pos_system/internal/checkout"
	"github.com/anasbld/pos_system/internal/config"
	"github.com/anasbld/pos_system/internal/es"
	"github.com/anasbld/pos_system/internal/events"
	"github.com/anasbld/pos_system/internal/handlers"
	"github.com/anasbld/pos_system/internal/logging"
	authmw "github.com/anasbld/pos_system/internal/middleware/auth"
	metricsmw "github.com/anasbld/pos_system/internal/middleware/metrics"
	"github.com/anasbld/pos_system/internal/middleware/ratelimit"
	"github.com/anasbld/pos_system/internal/observability"
	"github.com/anasbld/pos_system/internal/session"
	httpserver "github.com/anasbld/pos_system/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	if err := config.Seed(db, configuration); err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	registry := session.NewRegistry(
		configuration.SESSION_TTL,
		session.WithSingleLogin(configuration.SESSION_SINGLE_LOGIN),
		session.WithLogger(logger),
	)
	observability.RegisterSessionsGauge(func() float64 { return float64(registry.Len()) })

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var searchHandler *handlers.SearchHandler
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init failed: %v", err)
		}
		searchHandler = &handlers.SearchHandler{ES: esClient, Index: "products"}
	}

	loginLimiter := ratelimit.New(configuration.LOGIN_RATE_PER_SECOND, configuration.LOGIN_RATE_BURST)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), metricsmw.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	deps := httpserver.Deps{
		Gate:           &authmw.Gate{Sessions: registry},
		AuthHandler:    &handlers.AuthHandler{DB: db, Sessions: registry, Producer: producer},
		ProductHandler: &handlers.ProductHandler{DB: db},
		CartHandler:    &handlers.CartHandler{DB: db, Sessions: registry, Checkout: &checkout.Coordinator{DB: db}, Producer: producer},
		AdminHandler:   &handlers.AdminHandler{DB: db, Sessions: registry, Producer: producer},
		SearchHandler:  searchHandler,
		LoginLimiter:   loginLimiter,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	logger.Info("pos server started", "addr", configuration.HTTP_ADDR)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	// mass logout: sessions do not survive a restart
	registry.Close()
	loginLimiter.Stop()

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}
}

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mainos-ai/mainos/config"
	"github.com/mainos-ai/mainos/internal/benchmark"
	"github.com/mainos-ai/mainos/internal/engine"
	"github.com/mainos-ai/mainos/internal/llm"
	"github.com/mainos-ai/mainos/internal/search"
	"github.com/mainos-ai/mainos/internal/store"
	"github.com/mainos-ai/mainos/internal/telemetry"
)

// Run wires every dependency and serves the API until the listener stops.
func Run(cfg *config.Config, addr string) error {
	e := newEcho()

	ctx := context.Background()
	if err := store.Migrate(cfg.Storage.Postgres.Migrations, cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	tracker, err := store.NewStatusTracker(ctx, cfg.Storage.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	var tele *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tele = telemetry.New(prometheus.DefaultRegisterer)
	}

	router, err := llm.NewRouter(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm providers: %w", err)
	}
	searcher, err := search.NewWebSearcher(cfg.Search)
	if err != nil {
		return fmt.Errorf("search provider: %w", err)
	}
	collector := search.NewCollector(cfg.Search, searcher, log.New(log.Writer(), "[SEARCH] ", log.LstdFlags))

	judge := benchmark.New(cfg.LLM.Routing.Benchmark, router, log.New(log.Writer(), "[BENCH] ", log.LstdFlags))
	eng := engine.New(cfg, router, collector, judge, tele, log.New(log.Writer(), "[ENGINE] ", log.LstdFlags))

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, auth.Secret) })
	me.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, MeResponse{UserID: userID(c)})
	})

	rh := &ReportsHandler{
		Store:      st,
		Tracker:    tracker,
		Engine:     eng,
		Logger:     log.New(log.Writer(), "[REPORTS] ", log.LstdFlags),
		RunTimeout: cfg.General.DefaultTimeout,
	}
	rh.Register(api, auth.Secret)

	if addr == "" {
		addr = cfg.Server.Address
	}
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the HTTP scaffolding shared by the server and its tests.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

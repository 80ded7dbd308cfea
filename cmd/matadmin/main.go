package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matadmin/matadmin/internal/app"
	"github.com/matadmin/matadmin/internal/auth"
	"github.com/matadmin/matadmin/internal/authapi"
	"github.com/matadmin/matadmin/internal/gateway"
	"github.com/matadmin/matadmin/internal/guard"
	"github.com/matadmin/matadmin/internal/masterdata"
	"github.com/matadmin/matadmin/internal/materials"
	"github.com/matadmin/matadmin/internal/observability"
	"github.com/matadmin/matadmin/internal/platform/cache"
	"github.com/matadmin/matadmin/internal/platform/httpx"
	"github.com/matadmin/matadmin/internal/shared"
	"github.com/matadmin/matadmin/internal/users"
	"github.com/matadmin/matadmin/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "matadmin_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	// The auth API client talks over a plain HTTP client: its endpoints are
	// either public or attach the bearer explicitly, and refresh must never
	// recurse into the retry chain.
	plainClient := gateway.NewHTTPClient(cfg.UpstreamTimeout, nil)
	authClient := authapi.NewClient(cfg.AuthAPIURL, plainClient, logger)

	// Every other upstream call rides the authenticated chain: the bearer
	// middleware attaches the session token and the refresh middleware turns
	// a token-failure 401 into one refresh plus one replay.
	authedClient := gateway.NewHTTPClient(cfg.UpstreamTimeout, nil,
		gateway.RefreshRetry(authClient, logger, metrics),
		gateway.Bearer(),
	)

	materialsClient := materials.NewClient(cfg.MaterialsAPIURL, authedClient)
	masterdataClient := masterdata.NewClient(cfg.MaterialsAPIURL, authedClient)
	usersClient := users.NewClient(httpx.NewUpstream(cfg.AuthAPIURL, authedClient))

	policy := guard.DefaultPolicy()

	authHandler := auth.NewHandler(logger, authClient, templates, sessionManager, csrfManager, policy.DefaultPath())
	materialsHandler := materials.NewHandler(logger, materialsClient, masterdataClient, templates, csrfManager)
	masterdataHandler := masterdata.NewHandler(logger, masterdataClient, templates, csrfManager)
	usersHandler := users.NewHandler(logger, usersClient, templates, csrfManager)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Templates:         templates,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthClient:        authClient,
		Policy:            policy,
		AuthHandler:       authHandler,
		MaterialsHandler:  materialsHandler,
		MasterDataHandler: masterdataHandler,
		UsersHandler:      usersHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"huddle-admin/backend/internal/api"
	"huddle-admin/backend/internal/auth"
	"huddle-admin/backend/internal/config"
	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/internal/mcp"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/internal/services"
	"huddle-admin/backend/internal/tls"
)

const serviceName = "huddle-admin"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "server",
		Short:         "Rating console backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (defaults to ./config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), configPath)
		},
	})
	return root
}

func setup(configPath string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func migrate(ctx context.Context, configPath string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, pool, err := repository.OpenPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("Schema migrated")
	return nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"okta_client_id", cfg.Auth.ClientID,
		"okta_domain", cfg.Auth.OktaDomain,
		"secret_len", len(cfg.Auth.ClientSecret),
		"swagger_client_id", cfg.Auth.SwaggerClientID,
		"worker_tenants", len(cfg.Worker.Endpoints),
	)
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client id matches the backend client id; PKCE login from /docs will fail against a web-app client")
	}
	if cfg.Worker.Token == "" {
		logger.Warn("worker.token is empty; internal routes will reject every call")
	}
	switch {
	case cfg.MCP.Token == "":
		logger.Warn("mcp.token is empty; MCP routes will reject every call")
	case cfg.MCP.Token == cfg.Worker.Token:
		return errors.New("mcp.token must differ from worker.token")
	}

	db, pool, err := repository.OpenPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("Database connected")

	if cfg.DB.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("Schema migrated")
	}

	// Repository and service layer
	store := repository.NewGormStore(db, logger)
	metrics, err := services.NewMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	orch := services.NewOrchestrator(store, logger, metrics)
	directory := services.NewDirectory(store)
	worker := services.NewHTTPWorkerClient(
		services.NewStaticEndpoints(cfg.Worker.Endpoints, cfg.Worker.DefaultURL),
		cfg.Worker.Timeout,
		cfg.Worker.TriggersPerMinute,
		logger,
	)

	authz, err := auth.New(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)
	e.Use(middleware.RequestID())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(api.RequestLogger(logger))
	e.Use(middleware.Recover())

	srv := api.NewServer(orch, directory, worker, store, logger)
	e.GET("/health", srv.HandleHealth)

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	apiGroup := e.Group("/api/v1", echo.WrapMiddleware(authz.RequireAuth))
	api.RegisterRoutes(apiGroup, srv)

	workerAuth := echo.WrapMiddleware(auth.RequireWorkerToken(cfg.Worker.Token))
	api.RegisterInternalRoutes(e.Group("/internal", workerAuth), srv)
	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(orch, cfg.MCP.Tenants, logger)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	operatorAuth := echo.WrapMiddleware(auth.RequireOperatorToken(cfg.MCP.Token))
	e.Any("/mcp", echo.WrapHandler(mcpHandlers), operatorAuth)
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers), operatorAuth)
	logger.Info("MCP protocol handlers mounted", "tenants", len(cfg.MCP.Tenants))

	e.GET("/openapi.yaml", api.SpecHandler(cfg.Auth.OktaDomain))
	e.GET("/docs", api.SwaggerHandler(cfg.Auth.SwaggerClientID))
	e.GET("/docs/oauth2-redirect.html", api.OAuth2RedirectHandler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.TLS.Enable {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return errors.New("tls.enable is set but tls.cert_file or tls.key_file is empty")
		}
		created, err := tls.EnsureSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return fmt.Errorf("prepare tls certificate: %w", err)
		}
		if created {
			logger.Warn("Generated a self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
		}
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
		logger.Info("Server stopped gracefully")
	}
	return nil
}

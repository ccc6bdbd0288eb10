// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
	"github.com/HugoLopez00/Packet-Project/internal/config"
	"github.com/HugoLopez00/Packet-Project/internal/logging"
	"github.com/HugoLopez00/Packet-Project/internal/observability"
	"github.com/HugoLopez00/Packet-Project/internal/store"
	"github.com/HugoLopez00/Packet-Project/internal/web"
)

const (
	serviceName     = "packet"
	shutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web and metrics servers",
		Long: `Start the HTTP API (register, login, session probe) and, unless
metrics-addr is empty, the metrics and health server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, autoMigrate, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending migrations before serving (postgres only)")

	return cmd
}

// runServeWithDeps starts the servers with injectable dependencies and blocks
// until a signal arrives, ctx is cancelled, or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, autoMigrate bool, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.UserStoreFactory == nil {
		deps.UserStoreFactory = openUserStore
	}
	if deps.KeyLoader == nil {
		deps.KeyLoader = auth.LoadKeyPair
	}
	if deps.Migrator == nil {
		deps.Migrator = store.MigrateUp
	}
	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(addr string, handler http.Handler, readHeaderTimeout time.Duration) WebServer {
			return web.NewServer(addr, handler, readHeaderTimeout)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log.Format)
	logger.Info("starting packet",
		"http_addr", cfg.HTTP.Addr,
		"driver", cfg.Database.Driver,
		"allowed_domain", cfg.Auth.AllowedDomain,
	)

	if autoMigrate {
		if cfg.Database.Driver != config.DriverPostgres {
			logger.Warn("auto-migrate ignored: the sqlite store creates its own schema")
		} else if err := deps.Migrator(cfg.Database.URL); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	keys, err := deps.KeyLoader(cfg.Auth.PrivateKeyFile, cfg.Auth.PublicKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}
	if !keys.CanSign() {
		return oops.Code("KEY_PRIVATE_REQUIRED").
			With("private_key_file", cfg.Auth.PrivateKeyFile).
			Errorf("a private key is required to issue session tokens")
	}

	users, err := deps.UserStoreFactory(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	defer func() {
		if closeErr := users.Close(); closeErr != nil {
			logger.Warn("error closing user store", "error", closeErr)
		}
	}()

	hasher, err := auth.NewPasswordHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}
	tokens, err := auth.NewTokenService(keys, auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	domain, err := auth.NewDomainRule(cfg.Auth.AllowedDomain)
	if err != nil {
		return fmt.Errorf("invalid allowed domain: %w", err)
	}
	svc, err := auth.NewAuthService(users, hasher, tokens,
		auth.WithAllowedDomain(domain),
		auth.WithLogger(logger.With("component", "auth")),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), shutdownTimeout)
	}

	var (
		obsServer ObservabilityServer
		recorder  web.Recorder
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, users.Ping)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		recorder = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	handler, err := web.NewHandler(web.HandlerConfig{
		Auth:           svc,
		Guard:          auth.NewSessionGuard(tokens, cfg.Cookies()),
		Cookies:        cfg.Cookies(),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		LoginPath:      cfg.Web.LoginPath,
		IndexFile:      cfg.Web.IndexFile,
		Metrics:        recorder,
		Logger:         logger.With("component", "web"),
	})
	if err != nil {
		return fmt.Errorf("failed to create web handler: %w", err)
	}

	webServer := deps.WebServerFactory(cfg.HTTP.Addr, handler.Routes(), cfg.HTTP.ReadHeaderTimeout)
	webErrChan, err := webServer.Start()
	if err != nil {
		if obsServer != nil {
			stopCtx, stopCancel := shutdownCtx()
			defer stopCancel()
			if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
				logger.Warn("failed to stop observability server during cleanup", "error", stopErr)
			}
		}
		return fmt.Errorf("failed to start web server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Packet started")
	logger.Info("packet ready", "http_addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	stopCtx, stopCancel := shutdownCtx()
	defer stopCancel()

	if err := webServer.Stop(stopCtx); err != nil {
		logger.Warn("error stopping web server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(stopCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

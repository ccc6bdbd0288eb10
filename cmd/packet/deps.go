package main

import (
	"context"
	"net/http"
	"time"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
	"github.com/HugoLopez00/Packet-Project/internal/config"
	"github.com/HugoLopez00/Packet-Project/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// UserStoreFactory opens the configured user store.
	// Default: openUserStore
	UserStoreFactory func(ctx context.Context, cfg config.DatabaseConfig) (UserStore, error)

	// KeyLoader loads the token signing keys.
	// Default: auth.LoadKeyPair
	KeyLoader func(privatePath, publicPath string) (*auth.KeyPair, error)

	// Migrator applies pending migrations before serving.
	// Default: store.MigrateUp
	Migrator func(databaseURL string) error

	// WebServerFactory creates the public HTTP server.
	// Default: web.NewServer
	WebServerFactory func(addr string, handler http.Handler, readHeaderTimeout time.Duration) WebServer

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// UserStore is a user repository that owns its connection.
type UserStore interface {
	auth.UserRepository
	Close() error
}

// WebServer interface wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

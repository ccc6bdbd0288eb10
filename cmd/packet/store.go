// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/HugoLopez00/Packet-Project/internal/auth/postgres"
	"github.com/HugoLopez00/Packet-Project/internal/auth/sqlite"
	"github.com/HugoLopez00/Packet-Project/internal/config"
	"github.com/HugoLopez00/Packet-Project/internal/store"
)

// pgUserStore closes its pool along with the repository.
type pgUserStore struct {
	*postgres.UserRepository
	pool *pgxpool.Pool
}

func (s *pgUserStore) Close() error {
	s.pool.Close()
	return nil
}

// openUserStore opens the user store selected by cfg.Driver.
func openUserStore(ctx context.Context, cfg config.DatabaseConfig) (UserStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := store.OpenPostgres(ctx, cfg.URL)
		if err != nil {
			return nil, err //nolint:wrapcheck // already coded by store
		}
		return &pgUserStore{UserRepository: postgres.NewUserRepository(pool), pool: pool}, nil
	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err //nolint:wrapcheck // already coded by sqlite
		}
		return repo, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Driver).Errorf("unsupported database driver %q", cfg.Driver)
	}
}

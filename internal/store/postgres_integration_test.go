// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/HugoLopez00/Packet-Project/internal/store"
)

var _ = Describe("Users schema", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		pool      *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("packet_test"),
			postgres.WithUsername("packet"),
			postgres.WithPassword("packet"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		Expect(store.MigrateUp(connStr)).To(Succeed())

		pool, err = store.OpenPostgres(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	insert := func(email string) error {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
			ulid.Make().String(), email, "$2y$12$placeholder")
		return err
	}

	pgCode := func(err error) string {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return pgErr.Code
		}
		return ""
	}

	It("stores a user with a default creation time", func() {
		Expect(insert("alice@bssl.com")).To(Succeed())

		var createdAt time.Time
		err := pool.QueryRow(ctx, `SELECT created_at FROM users WHERE email = $1`, "alice@bssl.com").Scan(&createdAt)
		Expect(err).NotTo(HaveOccurred())
		Expect(createdAt).To(BeTemporally("~", time.Now(), time.Minute))
	})

	It("rejects a duplicate email", func() {
		Expect(insert("bob@bssl.com")).To(Succeed())
		Expect(pgCode(insert("bob@bssl.com"))).To(Equal(pgerrcode.UniqueViolation))
	})

	It("rejects an email that is not lower case", func() {
		Expect(pgCode(insert("Carol@bssl.com"))).To(Equal(pgerrcode.CheckViolation))
	})
})

var _ = Describe("OpenPostgres", func() {
	It("rejects an unparseable DSN", func() {
		_, err := store.OpenPostgres(context.Background(), "postgres://%zz")
		Expect(err).To(HaveOccurred())
	})
})

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser creates a validated User with a fresh ID.
// email must already be normalized.
func NewUser(email, passwordHash string, createdAt time.Time) (*User, error) {
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt.UTC(),
	}, nil
}

// UserRepository persists accounts. Implementations enforce email uniqueness
// and report a violation as an error wrapping ErrEmailTaken.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *User) error

	// GetByEmail returns the user with the given normalized email,
	// or an error wrapping ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

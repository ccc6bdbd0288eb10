// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
)

var (
	keysOnce  sync.Once
	keysA     *rsa.PrivateKey
	keysB     *rsa.PrivateKey
	errKeyGen error
)

// testPrivateKeys returns two distinct 2048-bit keys shared by the package tests.
func testPrivateKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		keysA, errKeyGen = rsa.GenerateKey(rand.Reader, 2048)
		if errKeyGen != nil {
			return
		}
		keysB, errKeyGen = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, errKeyGen)
	return keysA, keysB
}

func testKeyPair(t *testing.T) *auth.KeyPair {
	t.Helper()
	priv, _ := testPrivateKeys(t)
	kp, err := auth.NewKeyPair(priv)
	require.NoError(t, err)
	return kp
}

func foreignKeyPair(t *testing.T) *auth.KeyPair {
	t.Helper()
	_, priv := testPrivateKeys(t)
	kp, err := auth.NewKeyPair(priv)
	require.NoError(t, err)
	return kp
}

func fastHasher(t *testing.T) *auth.BcryptHasher {
	t.Helper()
	h, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

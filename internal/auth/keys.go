// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth

import (
	"crypto/rsa"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinRSAKeyBits is the smallest modulus accepted for signing keys.
const MinRSAKeyBits = 2048

// KeyPair is the RSA key material used to sign and verify session tokens.
// It is built once at startup and never mutated; share it by pointer.
// A KeyPair without a private key can only verify.
type KeyPair struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// NewKeyPair wraps a private key. The public half is derived from it.
func NewKeyPair(private *rsa.PrivateKey) (*KeyPair, error) {
	if private == nil {
		return nil, oops.Code("KEY_INVALID").Errorf("private key is required")
	}
	if private.N.BitLen() < MinRSAKeyBits {
		return nil, oops.Code("KEY_TOO_SMALL").
			With("bits", private.N.BitLen()).
			Errorf("RSA key must be at least %d bits", MinRSAKeyBits)
	}
	return &KeyPair{private: private, public: &private.PublicKey}, nil
}

// NewVerifyingKeyPair wraps a public key for verification only.
func NewVerifyingKeyPair(public *rsa.PublicKey) (*KeyPair, error) {
	if public == nil {
		return nil, oops.Code("KEY_INVALID").Errorf("public key is required")
	}
	if public.N.BitLen() < MinRSAKeyBits {
		return nil, oops.Code("KEY_TOO_SMALL").
			With("bits", public.N.BitLen()).
			Errorf("RSA key must be at least %d bits", MinRSAKeyBits)
	}
	return &KeyPair{public: public}, nil
}

// ParseKeyPair builds a KeyPair from PEM blocks. Either block may be empty,
// but not both. When both are given the public key must match the private one.
func ParseKeyPair(privatePEM, publicPEM []byte) (*KeyPair, error) {
	var (
		private *rsa.PrivateKey
		public  *rsa.PublicKey
		err     error
	)

	if len(privatePEM) > 0 {
		private, err = jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
		if err != nil {
			return nil, oops.Code("KEY_PARSE_FAILED").With("key", "private").Wrap(err)
		}
	}
	if len(publicPEM) > 0 {
		public, err = jwt.ParseRSAPublicKeyFromPEM(publicPEM)
		if err != nil {
			return nil, oops.Code("KEY_PARSE_FAILED").With("key", "public").Wrap(err)
		}
	}

	switch {
	case private != nil && public != nil:
		if !private.PublicKey.Equal(public) {
			return nil, oops.Code("KEY_MISMATCH").Errorf("public key does not match private key")
		}
		return NewKeyPair(private)
	case private != nil:
		return NewKeyPair(private)
	case public != nil:
		return NewVerifyingKeyPair(public)
	default:
		return nil, oops.Code("KEY_INVALID").Errorf("no key material provided")
	}
}

// LoadKeyPair reads PEM files from disk. An empty path skips that half.
func LoadKeyPair(privatePath, publicPath string) (*KeyPair, error) {
	privatePEM, err := readKeyFile(privatePath)
	if err != nil {
		return nil, err
	}
	publicPEM, err := readKeyFile(publicPath)
	if err != nil {
		return nil, err
	}
	return ParseKeyPair(privatePEM, publicPEM)
}

func readKeyFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, oops.Code("KEY_READ_FAILED").With("path", path).Wrap(err)
	}
	return data, nil
}

// CanSign reports whether the pair holds a private key.
func (k *KeyPair) CanSign() bool {
	return k.private != nil
}

// PublicKey returns the verification key.
func (k *KeyPair) PublicKey() *rsa.PublicKey {
	return k.public
}

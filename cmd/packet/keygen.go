// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
	"github.com/HugoLopez00/Packet-Project/internal/xdg"
)

const (
	defaultKeyBits = 4096
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
	privateKeyPerm = 0o600
	publicKeyPerm  = 0o644
)

type keygenConfig struct {
	outDir string
	bits   int
	force  bool
}

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	cfg := &keygenConfig{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA key pair for signing session tokens",
		Long: `Write private.pem (PKCS#8) and public.pem (PKIX) into the output
directory. Existing files are kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.outDir, "out-dir", "keys", "directory for the generated key files")
	cmd.Flags().IntVar(&cfg.bits, "bits", defaultKeyBits, "RSA modulus size in bits")
	cmd.Flags().BoolVar(&cfg.force, "force", false, "overwrite existing key files")

	return cmd
}

func runKeygen(cmd *cobra.Command, cfg *keygenConfig) error {
	if cfg.bits < auth.MinRSAKeyBits {
		return oops.Code("KEY_TOO_SMALL").
			With("bits", cfg.bits).
			Errorf("RSA key must be at least %d bits", auth.MinRSAKeyBits)
	}

	privPath := filepath.Join(cfg.outDir, privateKeyFile)
	pubPath := filepath.Join(cfg.outDir, publicKeyFile)
	if !cfg.force {
		for _, path := range []string{privPath, pubPath} {
			if _, err := os.Stat(path); err == nil {
				return oops.Code("KEY_EXISTS").
					With("path", path).
					Errorf("%s already exists (use --force to overwrite)", path)
			} else if !xdg.IsNotExist(err) {
				return oops.Code("KEY_STAT_FAILED").With("path", path).Wrap(err)
			}
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, cfg.bits)
	if err != nil {
		return oops.Code("KEY_GENERATE_FAILED").With("bits", cfg.bits).Wrap(err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return oops.Code("KEY_ENCODE_FAILED").With("kind", "private").Wrap(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return oops.Code("KEY_ENCODE_FAILED").With("kind", "public").Wrap(err)
	}

	if err := xdg.EnsureDir(cfg.outDir); err != nil {
		return err //nolint:wrapcheck // oops error from xdg
	}
	if err := writePEM(privPath, "PRIVATE KEY", privDER, privateKeyPerm); err != nil {
		return err
	}
	if err := writePEM(pubPath, "PUBLIC KEY", pubDER, publicKeyPerm); err != nil {
		return err
	}

	cmd.Printf("Wrote %s and %s (%d bits)\n", privPath, pubPath, cfg.bits)
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return oops.Code("KEY_WRITE_FAILED").With("path", path).Wrap(err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, perm); err != nil {
		return oops.Code("KEY_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

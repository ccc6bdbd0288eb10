// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

// Package xdg provides XDG Base Directory paths for Packet.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "packet"
	configFileName = "config.yaml"
)

// ConfigDir returns the XDG config directory for packet.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	return dir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for packet.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() (string, error) {
	return dir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func dir(env, homeRelative string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.Code("XDG_HOME_UNKNOWN").With("env", env).Wrap(err)
	}
	return filepath.Join(home, homeRelative, appName), nil
}

// DefaultConfigFile returns ConfigDir()/config.yaml if that file exists,
// or "" when it does not or no home directory can be determined.
func DefaultConfigFile() string {
	base, err := ConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(base, configFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("DIR_CREATE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// IsNotExist reports whether err means a file or directory is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

// Package auth provides authentication primitives for Packet.
//
// # Tokens
//
// Sessions are stateless RS512 JWTs carrying {"mail", "exp"}. A KeyPair is
// loaded once at startup and shared by pointer; TokenService signs and
// verifies with it, and SessionGuard reads the token from the session cookie.
//
// # Services
//
// Service runs the Register and Login pipelines. Every rejection is a
// *Failure with a stable Code and a client-facing Message; internal causes
// are logged and never returned to callers.
//
// Accounts are restricted to one email domain (DefaultAllowedDomain unless
// configured) and new passwords must satisfy DefaultPasswordPolicy.
package auth

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth

import "strings"

// Password policy constants shared with the browser client.
const (
	MinPasswordLength = 8

	// PasswordSpecialCharacters is the fixed set that satisfies the
	// special-character requirement.
	PasswordSpecialCharacters = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

// PasswordPolicy describes the complexity rules a new password must meet.
type PasswordPolicy struct {
	MinLength         int    `json:"min_length"`
	SpecialCharacters string `json:"special_characters"`
}

// DefaultPasswordPolicy returns the policy enforced at registration.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:         MinPasswordLength,
		SpecialCharacters: PasswordSpecialCharacters,
	}
}

// Validate reports whether password has at least MinLength bytes and contains
// an ASCII lowercase letter, an ASCII uppercase letter, a digit and one
// character from SpecialCharacters.
func (p PasswordPolicy) Validate(password string) bool {
	if len(password) < p.MinLength {
		return false
	}

	var lower, upper, digit, special bool
	for i := 0; i < len(password); i++ {
		c := password[i]
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.IndexByte(p.SpecialCharacters, c) >= 0:
			special = true
		}
	}
	return lower && upper && digit && special
}

// ValidatePassword checks password against DefaultPasswordPolicy.
func ValidatePassword(password string) bool {
	return DefaultPasswordPolicy().Validate(password)
}

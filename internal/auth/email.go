// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/samber/oops"
)

// DefaultAllowedDomain is the only email domain accepted unless configured otherwise.
const DefaultAllowedDomain = "bssl.com"

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// All lookups and inserts use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmailFormat reports whether email is a syntactically valid address.
// No DNS lookup is made for the domain.
func ValidEmailFormat(email string) bool {
	return validation.Validate(email, validation.Required, is.Email) == nil
}

// DomainRule restricts accounts to a single email domain.
type DomainRule struct {
	domain string
}

// NewDomainRule creates a DomainRule for domain (for example "bssl.com").
func NewDomainRule(domain string) (DomainRule, error) {
	d := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
	if d == "" {
		return DomainRule{}, oops.Code("AUTH_DOMAIN_INVALID").Errorf("allowed domain cannot be empty")
	}
	if strings.ContainsAny(d, "@ ") {
		return DomainRule{}, oops.Code("AUTH_DOMAIN_INVALID").
			With("domain", domain).
			Errorf("allowed domain %q is not a bare domain", domain)
	}
	return DomainRule{domain: d}, nil
}

// Domain returns the allowed domain without the leading "@".
func (r DomainRule) Domain() string {
	return r.domain
}

// Allows reports whether the part of email after its last "@" equals the
// allowed domain, ignoring case.
func (r DomainRule) Allows(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	return strings.EqualFold(email[at+1:], r.domain)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth

import (
	"context"
	"net/http"
	"time"
)

// Session cookie defaults.
const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultCookieName = "auth_token"
	sessionCookiePath = "/"
)

// Session is the result of a successful login.
type Session struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// CookieSettings controls how the session token is carried to the browser.
type CookieSettings struct {
	Name   string
	Domain string
	// Secure must be true whenever the site is served over TLS.
	Secure bool
}

// CookieName returns the configured name, falling back to DefaultCookieName.
func (c CookieSettings) CookieName() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

// SessionCookie builds the cookie carrying session. A new cookie is issued
// per login; existing cookies are never modified in place.
func (c CookieSettings) SessionCookie(session *Session) *http.Cookie {
	return &http.Cookie{
		Name:     c.CookieName(),
		Value:    session.Token,
		Path:     sessionCookiePath,
		Domain:   c.Domain,
		Expires:  session.ExpiresAt,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Identity is the authenticated principal recovered from a session token.
type Identity struct {
	Email     string
	ExpiresAt time.Time
}

// TokenVerifier verifies session tokens.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// SessionGuard answers whether a request carries a valid session.
// It holds no state beyond its configuration and is safe for concurrent use.
type SessionGuard struct {
	tokens     TokenVerifier
	cookieName string
}

// NewSessionGuard creates a SessionGuard reading the named cookie.
func NewSessionGuard(tokens TokenVerifier, cookies CookieSettings) *SessionGuard {
	return &SessionGuard{tokens: tokens, cookieName: cookies.CookieName()}
}

// CurrentUser returns the identity in the request's session cookie.
// Any verification failure is reported as unauthenticated.
func (g *SessionGuard) CurrentUser(r *http.Request) (Identity, bool) {
	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		return Identity{}, false
	}
	claims, err := g.tokens.Verify(cookie.Value)
	if err != nil {
		return Identity{}, false
	}
	return Identity{Email: claims.Subject, ExpiresAt: claims.ExpiresAt}, true
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

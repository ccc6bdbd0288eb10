// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Claims is the verified content of a session token.
type Claims struct {
	// Subject is the account email, carried as the "mail" claim.
	Subject   string
	ExpiresAt time.Time
}

// tokenClaims is the wire payload: {"mail":...,"exp":...}.
type tokenClaims struct {
	Mail string `json:"mail"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies RS512-signed session tokens.
// It is safe for concurrent use.
type TokenService struct {
	keys   *KeyPair
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTokenTTL sets the lifetime of tokens created by IssueFor.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		s.ttl = ttl
	}
}

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a TokenService over keys.
func NewTokenService(keys *KeyPair, opts ...TokenOption) (*TokenService, error) {
	if keys == nil {
		return nil, oops.Code("TOKEN_SERVICE_INVALID").Errorf("key pair is required")
	}

	s := &TokenService{
		keys: keys,
		ttl:  DefaultSessionTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, oops.Code("TOKEN_SERVICE_INVALID").
			With("ttl", s.ttl.String()).
			Errorf("token ttl must be positive")
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// TTL returns the lifetime used by IssueFor.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs claims. It fails only when the key pair cannot sign or the
// claims are incomplete. The exp claim holds whole seconds, so an ExpiresAt
// with a fractional second is rejected rather than rounded.
func (s *TokenService) Issue(claims Claims) (string, error) {
	if !s.keys.CanSign() {
		return "", oops.Code("TOKEN_SIGNING_FAILED").Errorf("key pair has no private key")
	}
	if claims.Subject == "" {
		return "", oops.Code("TOKEN_SIGNING_FAILED").Errorf("token subject is required")
	}
	if claims.ExpiresAt.IsZero() {
		return "", oops.Code("TOKEN_SIGNING_FAILED").Errorf("token expiry is required")
	}
	if !claims.ExpiresAt.Equal(claims.ExpiresAt.Truncate(time.Second)) {
		return "", oops.Code("TOKEN_EXPIRY_PRECISION").
			With("expires_at", claims.ExpiresAt).
			Errorf("token expiry must be a whole second")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS512, tokenClaims{
		Mail: claims.Subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(s.keys.private)
	if err != nil {
		return "", oops.Code("TOKEN_SIGNING_FAILED").With("subject", claims.Subject).Wrap(err)
	}
	return signed, nil
}

// IssueFor creates a token for email that expires one TTL from now, rounded
// up to the next whole second. The returned expiry matches the token.
func (s *TokenService) IssueFor(email string) (string, time.Time, error) {
	expiresAt := ceilSecond(s.now().Add(s.ttl))
	token, err := s.Issue(Claims{Subject: email, ExpiresAt: expiresAt})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks the token signature against the public key and rejects
// tokens whose exp claim is missing or not after the current time.
func (s *TokenService) Verify(token string) (*Claims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, oops.Code("TOKEN_MALFORMED").Errorf("token must have three segments")
	}

	parsed, err := s.parser.ParseWithClaims(token, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return s.keys.public, nil
	})
	if err != nil {
		return nil, classifyTokenError(err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, oops.Code("TOKEN_MALFORMED").Errorf("unexpected token claims")
	}
	if claims.Mail == "" {
		return nil, oops.Code("TOKEN_CLAIM_MISSING").With("claim", "mail").Errorf("token has no mail claim")
	}

	return &Claims{
		Subject:   claims.Mail,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return truncated
	}
	return truncated.Add(time.Second)
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return oops.Code("TOKEN_MALFORMED").Wrap(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return oops.Code("TOKEN_SIGNATURE_INVALID").Wrap(err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return oops.Code("TOKEN_CLAIM_MISSING").Wrap(err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return oops.Code("TOKEN_EXPIRED").Wrap(err)
	default:
		return oops.Code("TOKEN_INVALID").Wrap(err)
	}
}

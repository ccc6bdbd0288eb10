// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/HugoLopez00/Packet-Project/pkg/errutil"
)

// TokenIssuer creates session tokens for an account email.
type TokenIssuer interface {
	IssueFor(email string) (token string, expiresAt time.Time, err error)
}

// dummyPassword is hashed once at construction. Login verifies against that
// hash when the account does not exist so both paths cost one hash check.
//
//nolint:gosec // G101: not a credential, never matches a stored account.
const dummyPassword = "packet-timing-equalizer-0!A"

// Service runs the Register and Login pipelines.
// Rejections are returned as *Failure; the service keeps no per-request state.
type Service struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	domain    DomainRule
	policy    PasswordPolicy
	logger    *slog.Logger
	now       func() time.Time
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAllowedDomain restricts accounts to rule's domain.
func WithAllowedDomain(rule DomainRule) ServiceOption {
	return func(s *Service) {
		s.domain = rule
	}
}

// WithPasswordPolicy replaces DefaultPasswordPolicy.
func WithPasswordPolicy(policy PasswordPolicy) ServiceOption {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithLogger sets the logger used for rejected and failed operations.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithServiceClock replaces time.Now for account timestamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token issuer is required")
	}

	s := &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		domain: DomainRule{domain: DefaultAllowedDomain},
		policy: DefaultPasswordPolicy(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger cannot be nil")
	}

	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").
			With("operation", "hash timing equalizer").
			Wrap(err)
	}
	s.dummyHash = dummyHash

	return s, nil
}

// AllowedDomain returns the domain accounts must belong to.
func (s *Service) AllowedDomain() string {
	return s.domain.Domain()
}

// Register creates an account. Gates run in order and the first failing one
// decides the Failure code: missing fields, email format, domain, password
// policy, duplicate email, persistence.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	if f := s.checkIdentity(email, password); f != nil {
		return nil, s.reject(ctx, "register", email, f)
	}
	if !s.policy.Validate(password) || len(password) > MaxPasswordBytes {
		return nil, s.reject(ctx, "register", email, newFailure(CodeWeakPassword, msgWeakPassword, nil))
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, s.reject(ctx, "register", email, newFailure(CodeEmailAlreadyExists, msgEmailAlreadyExists, nil))
	case !errors.Is(err, ErrNotFound):
		return nil, s.fail(ctx, "register", email, CodePersistenceError, msgPersistenceError,
			oops.Code("AUTH_REGISTER_FAILED").With("operation", "get user by email").Wrap(err))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.fail(ctx, "register", email, CodePersistenceError, msgPersistenceError,
			oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err))
	}

	user, err := NewUser(email, hash, s.now())
	if err != nil {
		return nil, s.fail(ctx, "register", email, CodePersistenceError, msgPersistenceError, err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// Lost a race with a concurrent registration.
			return nil, s.reject(ctx, "register", email, newFailure(CodeEmailAlreadyExists, msgEmailAlreadyExists, err))
		}
		return nil, s.fail(ctx, "register", email, CodePersistenceError, msgPersistenceError,
			oops.Code("AUTH_REGISTER_FAILED").With("operation", "insert user").Wrap(err))
	}

	s.logger.InfoContext(ctx, "user registered", "email", email, "user_id", user.ID.String())
	return user, nil
}

// Login verifies credentials and issues a session token.
// An unknown email and a wrong password produce the same Failure, and both
// paths perform one hash verification.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)

	if f := s.checkIdentity(email, password); f != nil {
		return nil, s.reject(ctx, "login", email, f)
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, s.fail(ctx, "login", email, CodePersistenceError, msgPersistenceError,
				oops.Code("AUTH_LOGIN_FAILED").With("operation", "get user by email").Wrap(lookupErr))
		}
		_, _ = s.hasher.Verify(password, s.dummyHash) //nolint:errcheck // only equalizes timing
		return nil, s.reject(ctx, "login", email, newFailure(CodeInvalidCredentials, msgInvalidCredentials, nil))
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, s.fail(ctx, "login", email, CodePersistenceError, msgPersistenceError,
			oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "verify password").
				With("user_id", user.ID.String()).
				Wrap(err))
	}
	if !valid {
		return nil, s.reject(ctx, "login", email, newFailure(CodeInvalidCredentials, msgInvalidCredentials, nil))
	}

	token, expiresAt, err := s.tokens.IssueFor(user.Email)
	if err != nil {
		return nil, s.fail(ctx, "login", email, CodeTokenIssuanceError, msgTokenIssuanceError,
			oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue token").Wrap(err))
	}

	s.logger.InfoContext(ctx, "user logged in", "email", user.Email, "expires_at", expiresAt)
	return &Session{Email: user.Email, Token: token, ExpiresAt: expiresAt}, nil
}

// checkIdentity applies the gates shared by Register and Login.
func (s *Service) checkIdentity(email, password string) *Failure {
	if email == "" || password == "" {
		return newFailure(CodeMissingFields, msgMissingFields, nil)
	}
	if !ValidEmailFormat(email) {
		return newFailure(CodeInvalidEmailFormat, msgInvalidEmailFormat, nil)
	}
	if !s.domain.Allows(email) {
		return newFailure(CodeDomainNotAllowed, domainMessage(s.domain.Domain()), nil)
	}
	return nil
}

func (s *Service) reject(ctx context.Context, operation, email string, f *Failure) *Failure {
	s.logger.InfoContext(ctx, operation+" rejected", "code", string(f.Code), "email", email)
	return f
}

func (s *Service) fail(ctx context.Context, operation, email string, code FailureCode, msg string, cause error) *Failure {
	errutil.LogErrorContext(ctx, s.logger, operation+" failed", cause, "email", email)
	return newFailure(code, msg, cause)
}

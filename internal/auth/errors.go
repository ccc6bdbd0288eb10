// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by repositories when the unique email constraint rejects an insert.
var ErrEmailTaken = errors.New("email already registered")

// FailureCode is the stable, machine-readable category of a rejected Register or Login.
type FailureCode string

// Failure codes returned to clients.
const (
	CodeMissingFields      FailureCode = "MISSING_FIELDS"
	CodeInvalidEmailFormat FailureCode = "INVALID_EMAIL_FORMAT"
	CodeDomainNotAllowed   FailureCode = "DOMAIN_NOT_ALLOWED"
	CodeWeakPassword       FailureCode = "WEAK_PASSWORD"
	CodeEmailAlreadyExists FailureCode = "EMAIL_ALREADY_EXISTS"
	CodeInvalidCredentials FailureCode = "INVALID_CREDENTIALS"
	CodePersistenceError   FailureCode = "PERSISTENCE_ERROR"
	CodeTokenIssuanceError FailureCode = "TOKEN_ISSUANCE_ERROR"
)

// Client-facing messages. Existing clients match on these strings.
const (
	msgMissingFields      = "Email et mot de passe requis"
	msgInvalidEmailFormat = "Format d'email invalide"
	msgWeakPassword       = "Le mot de passe doit contenir au moins 8 caractères avec au moins une minuscule, une majuscule, un chiffre et un caractère spécial"
	msgEmailAlreadyExists = "Cet email est déjà utilisé"
	msgInvalidCredentials = "Email ou mot de passe incorrect"
	msgPersistenceError   = "Erreur lors de la création du compte"
	msgTokenIssuanceError = "Erreur lors de la création du token"
)

// Failure is the uniform rejection returned by Service.Register and Service.Login.
// Message is safe to show to the end user; the wrapped cause is for logs only.
type Failure struct {
	Code    FailureCode
	Message string
	cause   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Unwrap returns the internal cause, if any.
func (f *Failure) Unwrap() error {
	return f.cause
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func newFailure(code FailureCode, message string, cause error) *Failure {
	return &Failure{Code: code, Message: message, cause: cause}
}

func domainMessage(domain string) string {
	return fmt.Sprintf("Seuls les emails @%s sont autorisés", domain)
}

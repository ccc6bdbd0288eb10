// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
)

const msgMethodNotAllowed = "Method not allowed"

type authResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

type checkResponse struct {
	Authenticated bool   `json:"authenticated"`
	Mail          string `json:"mail,omitempty"`
}

// statusFor maps a failure code to its HTTP status.
func statusFor(code auth.FailureCode) int {
	switch code {
	case auth.CodeMissingFields, auth.CodeInvalidEmailFormat, auth.CodeWeakPassword:
		return http.StatusBadRequest
	case auth.CodeDomainNotAllowed:
		return http.StatusForbidden
	case auth.CodeEmailAlreadyExists:
		return http.StatusConflict
	case auth.CodeInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeMethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, authResponse{Error: msgMethodNotAllowed})
}

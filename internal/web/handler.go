// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

// Package web exposes registration, login and the session probe over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
)

const (
	// maxBodyBytes caps credential request bodies.
	maxBodyBytes = 1 << 20

	defaultRequestTimeout = 10 * time.Second
	defaultLoginPath      = "/login.html"

	operationRegister = "register"
	operationLogin    = "login"
	outcomeOK         = "ok"
	// loginReferer marks requests to /auth that come from the login page.
	loginReferer = "login.html"
)

var tracer = otel.Tracer("github.com/HugoLopez00/Packet-Project/internal/web")

// Authenticator runs the account pipelines.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// SessionChecker resolves the identity carried by a request.
type SessionChecker interface {
	CurrentUser(r *http.Request) (auth.Identity, bool)
}

// Recorder receives request metrics. *observability.Metrics implements it.
type Recorder interface {
	RecordAuth(operation, outcome string)
	RecordSessionCheck(authenticated bool)
	ObserveRequest(route string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuth(string, string)            {}
func (nopRecorder) RecordSessionCheck(bool)              {}
func (nopRecorder) ObserveRequest(string, time.Duration) {}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Auth    Authenticator
	Guard   SessionChecker
	Cookies auth.CookieSettings
	Policy  auth.PasswordPolicy

	// RequestTimeout bounds each request. Zero means 10s.
	RequestTimeout time.Duration
	// LoginPath is where unauthenticated browsers are sent. Empty means /login.html.
	LoginPath string
	// IndexFile is served to authenticated browsers by the probe. Empty answers JSON.
	IndexFile string

	Metrics Recorder
	Logger  *slog.Logger
}

// Handler serves the Packet HTTP API.
type Handler struct {
	auth      Authenticator
	guard     SessionChecker
	cookies   auth.CookieSettings
	policy    auth.PasswordPolicy
	timeout   time.Duration
	loginPath string
	indexFile string
	metrics   Recorder
	logger    *slog.Logger
}

// NewHandler validates cfg and applies defaults.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Auth == nil {
		return nil, oops.Code("WEB_HANDLER_INVALID").With("field", "Auth").Errorf("authenticator is required")
	}
	if cfg.Guard == nil {
		return nil, oops.Code("WEB_HANDLER_INVALID").With("field", "Guard").Errorf("session checker is required")
	}

	h := &Handler{
		auth:      cfg.Auth,
		guard:     cfg.Guard,
		cookies:   cfg.Cookies,
		policy:    cfg.Policy,
		timeout:   cfg.RequestTimeout,
		loginPath: cfg.LoginPath,
		indexFile: cfg.IndexFile,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if h.policy.MinLength == 0 {
		h.policy = auth.DefaultPasswordPolicy()
	}
	if h.timeout <= 0 {
		h.timeout = defaultRequestTimeout
	}
	if h.loginPath == "" {
		h.loginPath = defaultLoginPath
	}
	if h.metrics == nil {
		h.metrics = nopRecorder{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

// Routes returns the instrumented mux.
//
//	POST /api/register
//	POST /api/login
//	POST /auth                  login from login.html (or action=login), else register
//	GET  /auth/check            session probe
//	GET  /api/password-policy
//	GET  /index.html            IndexFile behind RequireSession, when configured
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.route(mux, "/api/register", h.postOnly(h.handleRegister))
	h.route(mux, "/api/login", h.postOnly(h.handleLogin))
	h.route(mux, "/auth", h.postOnly(h.handleDispatch))
	h.route(mux, "/auth/check", http.HandlerFunc(h.handleCheck))
	h.route(mux, "/api/password-policy", http.HandlerFunc(h.handlePolicy))
	if h.indexFile != "" {
		h.route(mux, "GET /index.html", h.RequireSession(http.HandlerFunc(h.serveIndex)))
	}

	return otelhttp.NewHandler(withTimeout(h.timeout, mux), "packet.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}

func (h *Handler) route(mux *http.ServeMux, pattern string, next http.Handler) {
	mux.Handle(pattern, h.observe(pattern, h.accessLog(next)))
}

// RequireSession gates page handlers: unauthenticated browsers are redirected
// to the login page and authenticated requests carry the Identity in their context.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.guard.CurrentUser(r)
		h.metrics.RecordSessionCheck(ok)
		if !ok {
			http.Redirect(w, r, h.loginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// credentials is the body accepted by the account endpoints.
type credentials struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
	Action   string `json:"action,omitempty"`
}

// decodeCredentials never fails: an unreadable body yields empty fields,
// which the pipelines reject as missing.
func decodeCredentials(w http.ResponseWriter, r *http.Request) credentials {
	var c credentials
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&c); err != nil {
		return credentials{}
	}
	return c
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, decodeCredentials(w, r))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, decodeCredentials(w, r))
}

// handleDispatch serves the combined /auth form endpoint.
func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	c := decodeCredentials(w, r)
	if c.Action == operationLogin || strings.Contains(r.Referer(), loginReferer) {
		h.login(w, r, c)
		return
	}
	h.register(w, r, c)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, c credentials) {
	ctx, span := tracer.Start(r.Context(), "auth.register")
	defer span.End()

	_, err := h.auth.Register(ctx, c.Mail, c.Password)
	if err != nil {
		h.writeFailure(w, span, operationRegister, err)
		return
	}
	h.succeed(w, span, operationRegister)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, c credentials) {
	ctx, span := tracer.Start(r.Context(), "auth.login")
	defer span.End()

	session, err := h.auth.Login(ctx, c.Mail, c.Password)
	if err != nil {
		h.writeFailure(w, span, operationLogin, err)
		return
	}
	http.SetCookie(w, h.cookies.SessionCookie(session))
	h.succeed(w, span, operationLogin)
}

func (h *Handler) succeed(w http.ResponseWriter, span trace.Span, operation string) {
	span.SetAttributes(attribute.String("packet.outcome", outcomeOK))
	h.metrics.RecordAuth(operation, outcomeOK)
	writeJSON(w, http.StatusOK, authResponse{Success: true})
}

func (h *Handler) writeFailure(w http.ResponseWriter, span trace.Span, operation string, err error) {
	f, ok := auth.AsFailure(err)
	if !ok {
		// Pipelines only return *auth.Failure; anything else is a wiring bug.
		h.logger.Error("unexpected authentication error", "operation", operation, "error", err)
		f = &auth.Failure{Code: auth.CodePersistenceError, Message: http.StatusText(http.StatusInternalServerError)}
	}

	status := statusFor(f.Code)
	span.SetAttributes(attribute.String("packet.outcome", string(f.Code)))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, string(f.Code))
	}
	h.metrics.RecordAuth(operation, string(f.Code))
	writeJSON(w, status, authResponse{Error: f.Message, Code: string(f.Code)})
}

// handleCheck answers whether the request carries a valid session. JSON
// callers get {"authenticated":...}; browsers are redirected to the login
// page or served the index page.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	id, ok := h.guard.CurrentUser(r)
	h.metrics.RecordSessionCheck(ok)
	jsonCaller := wantsJSON(r)

	switch {
	case !ok && jsonCaller:
		writeJSON(w, http.StatusOK, checkResponse{Authenticated: false})
	case !ok:
		http.Redirect(w, r, h.loginPath, http.StatusFound)
	case jsonCaller || h.indexFile == "":
		writeJSON(w, http.StatusOK, checkResponse{Authenticated: true, Mail: id.Email})
	default:
		h.serveIndex(w, r)
	}
}

// serveIndex uses ServeContent; ServeFile would redirect /index.html to /.
func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(h.indexFile)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "index page unavailable", "path", h.indexFile, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "index page unavailable", "path", h.indexFile, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, filepath.Base(h.indexFile), info.ModTime(), f)
}

func (h *Handler) handlePolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.policy)
}

// wantsJSON reports whether the caller is a script rather than a page load.
func wantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

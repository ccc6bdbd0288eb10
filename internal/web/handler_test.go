// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
	"github.com/HugoLopez00/Packet-Project/internal/web"
	"github.com/HugoLopez00/Packet-Project/pkg/errutil"
)

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Register(ctx context.Context, email, password string) (*auth.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *mockAuthenticator) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

type stubGuard struct {
	identity auth.Identity
	ok       bool
}

func (g stubGuard) CurrentUser(*http.Request) (auth.Identity, bool) {
	return g.identity, g.ok
}

type countingRecorder struct {
	mu       sync.Mutex
	auth     map[string]int
	sessions map[bool]int
	routes   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{auth: map[string]int{}, sessions: map[bool]int{}, routes: map[string]int{}}
}

func (c *countingRecorder) RecordAuth(operation, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth[operation+"/"+outcome]++
}

func (c *countingRecorder) RecordSessionCheck(authenticated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[authenticated]++
}

func (c *countingRecorder) ObserveRequest(route string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[route]++
}

const (
	testEmail    = "alice@bssl.com"
	testPassword = "Sup3r$ecret"
)

type fixture struct {
	auth     *mockAuthenticator
	recorder *countingRecorder
	handler  http.Handler
}

func newFixture(t *testing.T, guard web.SessionChecker, mutate ...func(*web.HandlerConfig)) *fixture {
	t.Helper()
	f := &fixture{auth: &mockAuthenticator{}, recorder: newCountingRecorder()}
	t.Cleanup(func() { f.auth.AssertExpectations(t) })

	cfg := web.HandlerConfig{
		Auth:    f.auth,
		Guard:   guard,
		Metrics: f.recorder,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h, err := web.NewHandler(cfg)
	require.NoError(t, err)
	f.handler = h.Routes()
	return f
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func postJSON(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func credentialsBody(email, password string) string {
	data, _ := json.Marshal(map[string]string{"mail": email, "password": password})
	return string(data)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func failure(code auth.FailureCode, msg string) error {
	return &auth.Failure{Code: code, Message: msg}
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := web.NewHandler(web.HandlerConfig{Guard: stubGuard{}})
	errutil.AssertErrorCode(t, err, "WEB_HANDLER_INVALID")
	errutil.AssertErrorContext(t, err, "field", "Auth")

	_, err = web.NewHandler(web.HandlerConfig{Auth: &mockAuthenticator{}})
	errutil.AssertErrorCode(t, err, "WEB_HANDLER_INVALID")
	errutil.AssertErrorContext(t, err, "field", "Guard")
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t, stubGuard{})
	f.auth.On("Register", mock.Anything, testEmail, testPassword).Return(&auth.User{Email: testEmail}, nil)

	rec := f.do(postJSON("/api/register", credentialsBody(testEmail, testPassword)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies(), "registration does not log the user in")
	assert.Equal(t, 1, f.recorder.auth["register/ok"])
}

func TestRegister_FailureStatuses(t *testing.T) {
	tests := []struct {
		code   auth.FailureCode
		msg    string
		status int
	}{
		{auth.CodeMissingFields, "Email et mot de passe requis", http.StatusBadRequest},
		{auth.CodeInvalidEmailFormat, "Format d'email invalide", http.StatusBadRequest},
		{auth.CodeWeakPassword, "Le mot de passe doit contenir au moins 8 caractères", http.StatusBadRequest},
		{auth.CodeDomainNotAllowed, "Seuls les emails @bssl.com sont autorisés", http.StatusForbidden},
		{auth.CodeEmailAlreadyExists, "Cet email est déjà utilisé", http.StatusConflict},
		{auth.CodePersistenceError, "Erreur lors de la création du compte", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			f := newFixture(t, stubGuard{})
			f.auth.On("Register", mock.Anything, testEmail, testPassword).Return(nil, failure(tt.code, tt.msg))

			rec := f.do(postJSON("/api/register", credentialsBody(testEmail, testPassword)))

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.msg, body["error"])
			assert.Equal(t, string(tt.code), body["code"])
			assert.Equal(t, 1, f.recorder.auth["register/"+string(tt.code)])
		})
	}
}

func TestRegister_UnexpectedErrorIsInternal(t *testing.T) {
	f := newFixture(t, stubGuard{})
	f.auth.On("Register", mock.Anything, testEmail, testPassword).Return(nil, errors.New("pq: secret detail"))

	rec := f.do(postJSON("/api/register", credentialsBody(testEmail, testPassword)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestAccountEndpoints_UndecodableBodyIsMissingFields(t *testing.T) {
	tests := map[string]string{
		"empty":      "",
		"not json":   "mail=alice@bssl.com",
		"wrong type": `{"mail": 42, "password": true}`,
		"too large":  `{"mail":"` + strings.Repeat("a", 2<<20) + `"}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, stubGuard{})
			f.auth.On("Register", mock.Anything, "", "").
				Return(nil, failure(auth.CodeMissingFields, "Email et mot de passe requis"))

			rec := f.do(postJSON("/api/register", body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegister_RequestHasDeadline(t *testing.T) {
	f := newFixture(t, stubGuard{}, func(c *web.HandlerConfig) { c.RequestTimeout = time.Minute })
	hasDeadline := mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Minute
	})
	f.auth.On("Register", hasDeadline, testEmail, testPassword).Return(&auth.User{}, nil)

	rec := f.do(postJSON("/api/register", credentialsBody(testEmail, testPassword)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	expiresAt := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	f := newFixture(t, stubGuard{}, func(c *web.HandlerConfig) {
		c.Cookies = auth.CookieSettings{Secure: true}
	})
	f.auth.On("Login", mock.Anything, testEmail, testPassword).
		Return(&auth.Session{Email: testEmail, Token: "h.p.s", ExpiresAt: expiresAt}, nil)

	rec := f.do(postJSON("/api/login", credentialsBody(testEmail, testPassword)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.Equal(t, "h.p.s", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, "/", cookies[0].Path)
	assert.True(t, expiresAt.Equal(cookies[0].Expires))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t, stubGuard{})
	f.auth.On("Login", mock.Anything, testEmail, "wrong").
		Return(nil, failure(auth.CodeInvalidCredentials, "Email ou mot de passe incorrect"))

	rec := f.do(postJSON("/api/login", credentialsBody(testEmail, "wrong")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, "Email ou mot de passe incorrect", decodeBody(t, rec)["error"])
}

func TestLogin_TokenIssuanceFailure(t *testing.T) {
	f := newFixture(t, stubGuard{})
	f.auth.On("Login", mock.Anything, testEmail, testPassword).
		Return(nil, failure(auth.CodeTokenIssuanceError, "Erreur lors de la création du token"))

	rec := f.do(postJSON("/api/login", credentialsBody(testEmail, testPassword)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAccountEndpoints_Methods(t *testing.T) {
	for _, path := range []string{"/api/register", "/api/login", "/auth"} {
		t.Run(path, func(t *testing.T) {
			f := newFixture(t, stubGuard{})

			rec := f.do(httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
			assert.JSONEq(t, `{"success":false,"error":"Method not allowed"}`, rec.Body.String())

			rec = f.do(httptest.NewRequest(http.MethodOptions, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
			assert.Empty(t, rec.Body.String())
		})
	}
}

func TestDispatch(t *testing.T) {
	session := &auth.Session{Email: testEmail, Token: "h.p.s", ExpiresAt: time.Now().Add(time.Hour)}

	t.Run("referer from login page logs in", func(t *testing.T) {
		f := newFixture(t, stubGuard{})
		f.auth.On("Login", mock.Anything, testEmail, testPassword).Return(session, nil)

		r := postJSON("/auth", credentialsBody(testEmail, testPassword))
		r.Header.Set("Referer", "https://intranet.bssl.com/login.html?next=%2F")
		rec := f.do(r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, rec.Result().Cookies(), 1)
	})

	t.Run("explicit login action", func(t *testing.T) {
		f := newFixture(t, stubGuard{})
		f.auth.On("Login", mock.Anything, testEmail, testPassword).Return(session, nil)

		rec := f.do(postJSON("/auth", `{"mail":"alice@bssl.com","password":"Sup3r$ecret","action":"login"}`))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("anything else registers", func(t *testing.T) {
		f := newFixture(t, stubGuard{})
		f.auth.On("Register", mock.Anything, testEmail, testPassword).Return(&auth.User{}, nil)

		r := postJSON("/auth", credentialsBody(testEmail, testPassword))
		r.Header.Set("Referer", "https://intranet.bssl.com/register.html")
		rec := f.do(r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})
}

func TestCheck(t *testing.T) {
	authenticated := stubGuard{identity: auth.Identity{Email: testEmail}, ok: true}

	indexFile := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(indexFile, []byte("<h1>Packet</h1>"), 0o600))
	withIndex := func(c *web.HandlerConfig) { c.IndexFile = indexFile }

	jsonRequest := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
		r.Header.Set("Accept", "application/json")
		return r
	}
	xhrRequest := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
		r.Header.Set("X-Requested-With", "XMLHttpRequest")
		return r
	}
	browserRequest := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
		r.Header.Set("Accept", "text/html,application/xhtml+xml")
		return r
	}

	t.Run("unauthenticated script", func(t *testing.T) {
		f := newFixture(t, stubGuard{}, withIndex)
		for _, r := range []*http.Request{jsonRequest(), xhrRequest()} {
			rec := f.do(r)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
		}
		assert.Equal(t, 2, f.recorder.sessions[false])
	})

	t.Run("unauthenticated browser is redirected", func(t *testing.T) {
		f := newFixture(t, stubGuard{}, withIndex)
		rec := f.do(browserRequest())
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login.html", rec.Header().Get("Location"))
	})

	t.Run("custom login path", func(t *testing.T) {
		f := newFixture(t, stubGuard{}, func(c *web.HandlerConfig) { c.LoginPath = "/signin" })
		rec := f.do(browserRequest())
		assert.Equal(t, "/signin", rec.Header().Get("Location"))
	})

	t.Run("authenticated script", func(t *testing.T) {
		f := newFixture(t, authenticated, withIndex)
		rec := f.do(jsonRequest())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"authenticated":true,"mail":"alice@bssl.com"}`, rec.Body.String())
		assert.Equal(t, 1, f.recorder.sessions[true])
	})

	t.Run("authenticated browser gets the index page", func(t *testing.T) {
		f := newFixture(t, authenticated, withIndex)
		rec := f.do(browserRequest())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<h1>Packet</h1>", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	})

	t.Run("authenticated browser without index page", func(t *testing.T) {
		f := newFixture(t, authenticated)
		rec := f.do(browserRequest())
		assert.JSONEq(t, `{"authenticated":true,"mail":"alice@bssl.com"}`, rec.Body.String())
	})

	t.Run("post is rejected", func(t *testing.T) {
		f := newFixture(t, authenticated)
		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/check", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestPasswordPolicy(t *testing.T) {
	f := newFixture(t, stubGuard{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/password-policy", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, auth.MinPasswordLength, body["min_length"])
	assert.Equal(t, auth.PasswordSpecialCharacters, body["special_characters"])
}

func TestRequireSession(t *testing.T) {
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte("hello " + id.Email))
	})

	t.Run("redirects anonymous visitors", func(t *testing.T) {
		h, err := web.NewHandler(web.HandlerConfig{Auth: &mockAuthenticator{}, Guard: stubGuard{}})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.RequireSession(page).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login.html", rec.Header().Get("Location"))
	})

	t.Run("passes identity through", func(t *testing.T) {
		h, err := web.NewHandler(web.HandlerConfig{
			Auth:  &mockAuthenticator{},
			Guard: stubGuard{identity: auth.Identity{Email: testEmail}, ok: true},
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.RequireSession(page).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello alice@bssl.com", rec.Body.String())
	})
}

func TestIndexPage(t *testing.T) {
	indexFile := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(indexFile, []byte("<h1>Packet</h1>"), 0o600))
	withIndex := func(c *web.HandlerConfig) { c.IndexFile = indexFile }

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t, stubGuard{}, withIndex)
		rec := f.do(httptest.NewRequest(http.MethodGet, "/index.html", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login.html", rec.Header().Get("Location"))
	})

	t.Run("authenticated", func(t *testing.T) {
		f := newFixture(t, stubGuard{identity: auth.Identity{Email: testEmail}, ok: true}, withIndex)
		rec := f.do(httptest.NewRequest(http.MethodGet, "/index.html", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<h1>Packet</h1>", rec.Body.String())
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	})

	t.Run("not mounted without an index file", func(t *testing.T) {
		f := newFixture(t, stubGuard{identity: auth.Identity{Email: testEmail}, ok: true})
		rec := f.do(httptest.NewRequest(http.MethodGet, "/index.html", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRoutes_RecordLatency(t *testing.T) {
	f := newFixture(t, stubGuard{})
	f.do(httptest.NewRequest(http.MethodGet, "/api/password-policy", nil))
	f.do(httptest.NewRequest(http.MethodGet, "/api/password-policy", nil))
	assert.Equal(t, 2, f.recorder.routes["/api/password-policy"])
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package web_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
	"github.com/HugoLopez00/Packet-Project/internal/auth/sqlite"
	"github.com/HugoLopez00/Packet-Project/internal/web"
)

var _ = Describe("Account flow", func() {
	var (
		server *httptest.Server
		client *http.Client
		repo   *sqlite.UserRepository
	)

	BeforeEach(func() {
		ctx := context.Background()

		var err error
		repo, err = sqlite.Open(ctx, filepath.Join(GinkgoT().TempDir(), "packet.db"))
		Expect(err).NotTo(HaveOccurred())

		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		Expect(err).NotTo(HaveOccurred())
		keys, err := auth.NewKeyPair(priv)
		Expect(err).NotTo(HaveOccurred())
		tokens, err := auth.NewTokenService(keys)
		Expect(err).NotTo(HaveOccurred())

		hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc, err := auth.NewAuthService(repo, hasher, tokens, auth.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		handler, err := web.NewHandler(web.HandlerConfig{
			Auth:   svc,
			Guard:  auth.NewSessionGuard(tokens, auth.CookieSettings{}),
			Logger: logger,
		})
		Expect(err).NotTo(HaveOccurred())

		mux := http.NewServeMux()
		mux.Handle("/", handler.Routes())
		mux.Handle("/index.html", handler.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.IdentityFromContext(r.Context())
			_, _ = io.WriteString(w, "welcome "+id.Email)
		})))
		server = httptest.NewServer(mux)

		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client = &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	})

	AfterEach(func() {
		server.Close()
		Expect(repo.Close()).To(Succeed())
	})

	post := func(path, mail, password string) (int, map[string]any) {
		body, err := json.Marshal(map[string]string{"mail": mail, "password": password})
		Expect(err).NotTo(HaveOccurred())
		resp, err := client.Post(server.URL+path, "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var out map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		return resp.StatusCode, out
	}

	check := func() map[string]any {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/check", nil)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Accept", "application/json")
		resp, err := client.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var out map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		return out
	}

	It("registers, logs in and reaches the protected page", func() {
		status, body := post("/api/register", "Alice@BSSL.com ", "Sup3r$ecret")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("success", true))

		Expect(check()).To(HaveKeyWithValue("authenticated", false))

		status, _ = post("/api/login", "alice@bssl.com", "Sup3r$ecret")
		Expect(status).To(Equal(http.StatusOK))

		Expect(check()).To(And(
			HaveKeyWithValue("authenticated", true),
			HaveKeyWithValue("mail", "alice@bssl.com"),
		))

		resp, err := client.Get(server.URL + "/index.html")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		page, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(page)).To(Equal("welcome alice@bssl.com"))
	})

	It("rejects a second registration of the same email", func() {
		status, _ := post("/api/register", "bob@bssl.com", "Sup3r$ecret")
		Expect(status).To(Equal(http.StatusOK))

		status, body := post("/api/register", "BOB@bssl.com", "An0ther$ecret")
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body["error"]).To(ContainSubstring("déjà utilisé"))
	})

	It("refuses foreign domains without creating an account", func() {
		status, body := post("/api/register", "mallory@evil.com", "Sup3r$ecret")
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body["error"]).To(ContainSubstring("@bssl.com"))

		_, err := repo.GetByEmail(context.Background(), "mallory@evil.com")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("gives the same answer for an unknown account and a wrong password", func() {
		status, _ := post("/api/register", "carol@bssl.com", "Sup3r$ecret")
		Expect(status).To(Equal(http.StatusOK))

		unknownStatus, unknown := post("/api/login", "nobody@bssl.com", "Sup3r$ecret")
		wrongStatus, wrong := post("/api/login", "carol@bssl.com", "Wr0ng$ecret")

		Expect(unknownStatus).To(Equal(http.StatusUnauthorized))
		Expect(wrongStatus).To(Equal(unknownStatus))
		Expect(wrong).To(Equal(unknown))
		Expect(check()).To(HaveKeyWithValue("authenticated", false))
	})

	It("redirects an anonymous browser to the login page", func() {
		resp, err := client.Get(server.URL + "/index.html")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusFound))
		Expect(resp.Header.Get("Location")).To(Equal("/login.html"))
	})
})

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

// Package config loads Packet settings from flag defaults, an optional YAML
// file, and explicitly set flags, in increasing order of precedence.
package config

import (
	"net"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/HugoLopez00/Packet-Project/internal/auth"
	"github.com/HugoLopez00/Packet-Project/internal/logging"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseURLEnv fills database.url when neither the file nor a flag sets it.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the complete runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" yaml:"http"`
	Metrics  MetricsConfig  `koanf:"metrics" yaml:"metrics"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Auth     AuthConfig     `koanf:"auth" yaml:"auth"`
	Cookie   CookieConfig   `koanf:"cookie" yaml:"cookie"`
	Web      WebConfig      `koanf:"web" yaml:"web"`
}

// HTTPConfig configures the public web server.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" yaml:"addr"`
	RequestTimeout    time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogConfig selects the log output format.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
}

// DatabaseConfig selects the user store and where it lives.
type DatabaseConfig struct {
	Driver string `koanf:"driver" yaml:"driver"`
	URL    string `koanf:"url" yaml:"url"`
	Path   string `koanf:"path" yaml:"path"`
}

// AuthConfig configures accounts, password hashing and session tokens.
type AuthConfig struct {
	AllowedDomain  string        `koanf:"allowed_domain" yaml:"allowed_domain"`
	TokenTTL       time.Duration `koanf:"token_ttl" yaml:"token_ttl"`
	PrivateKeyFile string        `koanf:"private_key_file" yaml:"private_key_file"`
	PublicKeyFile  string        `koanf:"public_key_file" yaml:"public_key_file"`
	Hasher         string        `koanf:"hasher" yaml:"hasher"`
	BcryptCost     int           `koanf:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// CookieConfig sets the session cookie attributes.
type CookieConfig struct {
	Name   string `koanf:"name" yaml:"name"`
	Secure bool   `koanf:"secure" yaml:"secure"`
	Domain string `koanf:"domain" yaml:"domain"`
}

// WebConfig locates the static pages. IndexFile is served to authenticated
// browsers by the session probe; empty answers with JSON instead.
type WebConfig struct {
	LoginPath string `koanf:"login_path" yaml:"login_path"`
	IndexFile string `koanf:"index_file" yaml:"index_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			RequestTimeout:    10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:      LogConfig{Format: logging.FormatJSON},
		Database: DatabaseConfig{Driver: DriverPostgres, Path: "packet.db"},
		Auth: AuthConfig{
			AllowedDomain:  auth.DefaultAllowedDomain,
			TokenTTL:       auth.DefaultSessionTTL,
			PrivateKeyFile: "keys/private.pem",
			PublicKeyFile:  "keys/public.pem",
			Hasher:         "bcrypt",
			BcryptCost:     auth.DefaultBcryptCost,
		},
		Cookie: CookieConfig{Name: auth.DefaultCookieName},
		Web:    WebConfig{LoginPath: "/login.html"},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":           "http.addr",
	"request-timeout":     "http.request_timeout",
	"read-header-timeout": "http.read_header_timeout",
	"metrics-addr":        "metrics.addr",
	"log-format":          "log.format",
	"db-driver":           "database.driver",
	"database-url":        "database.url",
	"db-path":             "database.path",
	"allowed-domain":      "auth.allowed_domain",
	"token-ttl":           "auth.token_ttl",
	"private-key":         "auth.private_key_file",
	"public-key":          "auth.public_key_file",
	"hasher":              "auth.hasher",
	"bcrypt-cost":         "auth.bcrypt_cost",
	"cookie-name":         "cookie.name",
	"cookie-secure":       "cookie.secure",
	"cookie-domain":       "cookie.domain",
	"login-path":          "web.login_path",
	"index-file":          "web.index_file",
}

// RegisterFlags adds a flag for every configuration key to fs, defaulting
// to Default().
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "web server listen address")
	fs.Duration("request-timeout", d.HTTP.RequestTimeout, "per-request deadline")
	fs.Duration("read-header-timeout", d.HTTP.ReadHeaderTimeout, "time allowed to read request headers")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("db-driver", d.Database.Driver, "user store driver (postgres or sqlite)")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	fs.String("db-path", d.Database.Path, "SQLite database file")
	fs.String("allowed-domain", d.Auth.AllowedDomain, "email domain allowed to register and log in")
	fs.Duration("token-ttl", d.Auth.TokenTTL, "session token lifetime")
	fs.String("private-key", d.Auth.PrivateKeyFile, "PEM RSA private key used to sign tokens")
	fs.String("public-key", d.Auth.PublicKeyFile, "PEM RSA public key used to verify tokens")
	fs.String("hasher", d.Auth.Hasher, "password hasher (bcrypt or argon2id)")
	fs.Int("bcrypt-cost", d.Auth.BcryptCost, "bcrypt work factor")
	fs.String("cookie-name", d.Cookie.Name, "session cookie name")
	fs.Bool("cookie-secure", d.Cookie.Secure, "mark the session cookie Secure (HTTPS only)")
	fs.String("cookie-domain", d.Cookie.Domain, "session cookie domain")
	fs.String("login-path", d.Web.LoginPath, "where unauthenticated browsers are redirected")
	fs.String("index-file", d.Web.IndexFile, "page served to authenticated browsers by /auth/check")
}

// Load builds a Config. path may be empty; a named file that does not exist
// is an error. fs may be nil, in which case only the file and defaults apply.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		// With k passed in, unchanged flags only fill keys the file left unset.
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(DatabaseURLEnv)
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validateAddr("http.addr", c.HTTP.Addr, false); err != nil {
		return err
	}
	if err := validateAddr("metrics.addr", c.Metrics.Addr, true); err != nil {
		return err
	}
	if c.HTTP.RequestTimeout <= 0 {
		return invalid("http.request_timeout", "must be positive")
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		return invalid("http.read_header_timeout", "must be positive")
	}
	if !logging.ValidFormat(c.Log.Format) {
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "is required for the postgres driver (or set %s)", DatabaseURLEnv)
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return invalid("database.path", "is required for the sqlite driver")
		}
	default:
		return invalid("database.driver", "must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}

	if _, err := auth.NewDomainRule(c.Auth.AllowedDomain); err != nil {
		return invalid("auth.allowed_domain", "%v", err)
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "must be positive")
	}
	if c.Auth.PrivateKeyFile == "" || c.Auth.PublicKeyFile == "" {
		return invalid("auth.private_key_file", "both key files are required")
	}
	switch c.Auth.Hasher {
	case "bcrypt":
		if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
			return invalid("auth.bcrypt_cost", "must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
	case "argon2id":
	default:
		return invalid("auth.hasher", "must be 'bcrypt' or 'argon2id', got %q", c.Auth.Hasher)
	}

	if c.Cookie.Name == "" {
		return invalid("cookie.name", "is required")
	}
	if !strings.HasPrefix(c.Web.LoginPath, "/") {
		return invalid("web.login_path", "must be an absolute path, got %q", c.Web.LoginPath)
	}
	return nil
}

// Cookies returns the session cookie settings.
func (c *Config) Cookies() auth.CookieSettings {
	return auth.CookieSettings{Name: c.Cookie.Name, Domain: c.Cookie.Domain, Secure: c.Cookie.Secure}
}

func validateAddr(key, addr string, optional bool) error {
	if addr == "" {
		if optional {
			return nil
		}
		return invalid(key, "is required")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return invalid(key, "must be host:port, got %q", addr)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}

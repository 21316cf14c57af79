package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	Auth      AuthConfig      `koanf:"auth"`
	Backend   BackendConfig   `koanf:"backend"`
	Upload    UploadConfig    `koanf:"upload"`
	Dashboard DashboardConfig `koanf:"dashboard"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string          `koanf:"host"`
	Port       int             `koanf:"port"`
	Mode       string          `koanf:"mode"`
	CSRFSecret string          `koanf:"csrf_secret"`
	Timeout    string          `koanf:"timeout"`
	CORS       CORSConfig      `koanf:"cors"`
	RateLimit  RateLimitConfig `koanf:"rate_limit"`

	// TrustRequestID reuses a valid upstream X-Request-ID instead of
	// generating one. Enable it behind a proxy that sets the header.
	TrustRequestID bool `koanf:"trust_request_id"`
}

// CORSConfig holds CORS middleware settings.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	ExposeHeaders    []string `koanf:"expose_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	MySQL    MySQLConfig    `koanf:"mysql"`
	Pool     PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// MySQLConfig holds MySQL-specific settings.
type MySQLConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	TLS      string `koanf:"tls"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// AuthConfig controls the signed attribution token sent with every backend
// call. When disabled the backend trusts the X-Actor-ID header.
type AuthConfig struct {
	Enabled     bool   `koanf:"enabled"`
	JWTSecret   string `koanf:"jwt_secret"`
	TokenExpiry string `koanf:"token_expiry"`
}

// BackendConfig tells the dashboard where the records API lives.
type BackendConfig struct {
	// Embedded serves the records API from this process under /api.
	Embedded bool           `koanf:"embedded"`
	BaseURL  string         `koanf:"base_url"`
	Timeout  string         `koanf:"timeout"`
	Operator OperatorConfig `koanf:"operator"`
}

// OperatorConfig is the session the dashboard acts as.
type OperatorConfig struct {
	ID   string `koanf:"id"`
	Name string `koanf:"name"`
}

// UploadConfig bounds file and image fields.
type UploadConfig struct {
	MaxSizeMB  int      `koanf:"max_size_mb"`
	ImageTypes []string `koanf:"image_types"`
}

// DashboardConfig tunes the admin pages.
type DashboardConfig struct {
	ConfirmTTL          string `koanf:"confirm_ttl"`
	OverviewConcurrency int    `koanf:"overview_concurrency"`
}

const (
	defaultBackendTimeout      = "15s"
	defaultUploadMaxSizeMB     = 5
	defaultOverviewConcurrency = 4
)

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator. Single underscores are preserved as part of the key name.
// For example, APP__SERVER__PORT=9090 overrides server.port and
// APP__BACKEND__OPERATOR__ID=u-7 overrides backend.operator.id.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	// APP__DATABASE__POOL__MAX_IDLE_CONNS -> database.pool.max_idle_conns
	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "__", ".")
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints and supported values, filling in
// defaults for optional settings.
func (c *Config) Validate() error {
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	if err := c.validateDatabase(); err != nil {
		return err
	}

	// Whitespace-only durations mean unset.
	c.Server.Timeout = strings.TrimSpace(c.Server.Timeout)
	c.Server.CORS.MaxAge = strings.TrimSpace(c.Server.CORS.MaxAge)
	c.Database.Pool.ConnMaxLifetime = strings.TrimSpace(c.Database.Pool.ConnMaxLifetime)

	durations := []struct {
		name  string
		value string
	}{
		{"server.timeout", c.Server.Timeout},
		{"server.cors.max_age", c.Server.CORS.MaxAge},
		{"database.pool.conn_max_lifetime", c.Database.Pool.ConnMaxLifetime},
	}
	for _, d := range durations {
		if err := validatePositiveDuration(d.name, d.value); err != nil {
			return err
		}
	}

	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid server.rate_limit.rps %v: must be positive when rate limiting is enabled", c.Server.RateLimit.RPS)
		}
		if c.Server.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid server.rate_limit.burst %d: must be positive when rate limiting is enabled", c.Server.RateLimit.Burst)
		}
	}

	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}

	if c.Upload.MaxSizeMB == 0 {
		c.Upload.MaxSizeMB = defaultUploadMaxSizeMB
	}
	if c.Upload.MaxSizeMB < 0 {
		return fmt.Errorf("invalid upload.max_size_mb %d: must be positive", c.Upload.MaxSizeMB)
	}
	imageTypes := make([]string, 0, len(c.Upload.ImageTypes))
	for idx, t := range c.Upload.ImageTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if !strings.HasPrefix(t, "image/") {
			return fmt.Errorf("invalid upload.image_types[%d] %q: must be an image/* MIME type", idx, c.Upload.ImageTypes[idx])
		}
		imageTypes = append(imageTypes, t)
	}
	c.Upload.ImageTypes = imageTypes

	c.Dashboard.ConfirmTTL = strings.TrimSpace(c.Dashboard.ConfirmTTL)
	if err := validatePositiveDuration("dashboard.confirm_ttl", c.Dashboard.ConfirmTTL); err != nil {
		return err
	}
	if c.Dashboard.OverviewConcurrency == 0 {
		c.Dashboard.OverviewConcurrency = defaultOverviewConcurrency
	}
	if c.Dashboard.OverviewConcurrency < 0 {
		return fmt.Errorf("invalid dashboard.overview_concurrency %d: must be positive", c.Dashboard.OverviewConcurrency)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Log.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", c.Log.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "text", "json":
		c.Log.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", c.Log.Format, "text", "json")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q, %q", c.Database.Driver, "sqlite", "postgres", "mysql")
	}

	switch c.Database.Driver {
	case "sqlite":
		sqlitePath := strings.TrimSpace(c.Database.SQLite.Path)
		if sqlitePath == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		c.Database.SQLite.Path = sqlitePath

	case "postgres":
		pg := &c.Database.Postgres
		if err := requireConn("postgres", &pg.Host, pg.Port, &pg.User, &pg.DBName); err != nil {
			return err
		}
		sslMode := strings.TrimSpace(pg.SSLMode)
		switch sslMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", pg.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
		}
		if c.Server.Mode == gin.ReleaseMode {
			switch sslMode {
			case "require", "verify-ca", "verify-full":
			default:
				return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", pg.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
			}
		}
		pg.SSLMode = sslMode

	case "mysql":
		my := &c.Database.MySQL
		if err := requireConn("mysql", &my.Host, my.Port, &my.User, &my.DBName); err != nil {
			return err
		}
		tls := strings.ToLower(strings.TrimSpace(my.TLS))
		if tls == "" {
			tls = "false"
		}
		switch tls {
		case "true", "false", "skip-verify", "preferred":
		default:
			return fmt.Errorf("invalid database.mysql.tls %q: must be one of %q, %q, %q, %q", my.TLS, "true", "false", "skip-verify", "preferred")
		}
		if c.Server.Mode == gin.ReleaseMode && tls != "true" {
			return fmt.Errorf("invalid database.mysql.tls %q for server.mode %q: must be %q", my.TLS, gin.ReleaseMode, "true")
		}
		my.TLS = tls
	}
	return nil
}

// requireConn trims and checks the connection fields shared by the network
// drivers.
func requireConn(driver string, host *string, port int, user, dbName *string) error {
	*host = strings.TrimSpace(*host)
	if *host == "" {
		return fmt.Errorf("database.%s.host is required when driver is %s", driver, driver)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid database.%s.port %d: must be between 1 and 65535", driver, port)
	}
	*user = strings.TrimSpace(*user)
	if *user == "" {
		return fmt.Errorf("database.%s.user is required when driver is %s", driver, driver)
	}
	*dbName = strings.TrimSpace(*dbName)
	if *dbName == "" {
		return fmt.Errorf("database.%s.dbname is required when driver is %s", driver, driver)
	}
	return nil
}

func (c *Config) validateAuth() error {
	if !c.Auth.Enabled {
		return nil
	}
	jwtSecret := strings.TrimSpace(c.Auth.JWTSecret)
	if jwtSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if len(jwtSecret) < 32 {
		return fmt.Errorf("invalid auth.jwt_secret: must be at least 32 characters")
	}
	if c.Server.Mode == gin.ReleaseMode && CountSecretClasses(jwtSecret) < 3 {
		return fmt.Errorf("auth.jwt_secret must include at least 3 character classes (lowercase, uppercase, digit, symbol) in release mode")
	}
	c.Auth.JWTSecret = jwtSecret

	tokenExpiry := strings.TrimSpace(c.Auth.TokenExpiry)
	if tokenExpiry == "" {
		return fmt.Errorf("auth.token_expiry is required when auth is enabled")
	}
	if err := validatePositiveDuration("auth.token_expiry", tokenExpiry); err != nil {
		return err
	}
	c.Auth.TokenExpiry = tokenExpiry
	return nil
}

func (c *Config) validateBackend() error {
	b := &c.Backend
	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if b.BaseURL == "" && b.Embedded {
		b.BaseURL = fmt.Sprintf("http://%s:%d", loopbackHost(c.Server.Host), c.Server.Port)
	}
	if b.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required when backend.embedded is false")
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url %q: must be an absolute http(s) url", b.BaseURL)
	}

	b.Timeout = strings.TrimSpace(b.Timeout)
	if b.Timeout == "" {
		b.Timeout = defaultBackendTimeout
	}
	if err := validatePositiveDuration("backend.timeout", b.Timeout); err != nil {
		return err
	}

	b.Operator.ID = strings.TrimSpace(b.Operator.ID)
	b.Operator.Name = strings.TrimSpace(b.Operator.Name)
	if c.Auth.Enabled && b.Operator.ID == "" {
		return fmt.Errorf("backend.operator.id is required when auth is enabled")
	}
	return nil
}

// loopbackHost maps wildcard listen addresses to one the process can dial.
func loopbackHost(host string) string {
	switch host {
	case "0.0.0.0", "::", "":
		return "127.0.0.1"
	default:
		return host
	}
}

func validatePositiveDuration(name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", name, value)
	}
	return nil
}

// ParseDuration returns the parsed value of a validated duration setting, or
// fallback when it is unset.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// CountSecretClasses counts how many character classes (lowercase, uppercase,
// digit, symbol) are present in the given secret string.
func CountSecretClasses(secret string) int {
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	classes := 0
	for _, ok := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if ok {
			classes++
		}
	}
	return classes
}

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/hrdesk/internal/catalog"
	"github.com/simp-lee/hrdesk/internal/config"
	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
	"github.com/simp-lee/hrdesk/internal/metrics"
	"github.com/simp-lee/hrdesk/internal/middleware"
	"github.com/simp-lee/hrdesk/internal/module/dashboard"
	"github.com/simp-lee/hrdesk/internal/module/records"
	"github.com/simp-lee/hrdesk/internal/remote"
	"github.com/simp-lee/hrdesk/internal/session"
	"github.com/simp-lee/hrdesk/web"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine *gin.Engine
	db     *gorm.DB
	logger *logger.Logger
	cfg    *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging and the database, the records API when the backend is
// embedded, one collection client per catalog entity for the dashboard,
// middleware, template rendering and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	// 1. Logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}
	csrfSecret, err := resolveCSRFSecret(cfg.Server.Mode, cfg.Server.CSRFSecret)
	if err != nil {
		return nil, err
	}
	if csrfSecret != strings.TrimSpace(cfg.Server.CSRFSecret) {
		log.Warn("no csrf_secret configured, using random secret in non-release mode (will change on restart)")
	}

	// 2. Database.
	db, err := config.SetupDatabase(&cfg.Database, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	defer func() {
		if success {
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", slog.Any("error", err))
		}
	}()

	cat := catalog.Default()
	validator := crud.NewValidator(
		crud.WithMaxUploadSize(int64(cfg.Upload.MaxSizeMB)<<20),
		crud.WithImageTypes(cfg.Upload.ImageTypes...),
	)
	m := metrics.New()

	var modules []Module

	// 3. Records API: repository → service → handler.
	if cfg.Backend.Embedded {
		if err := db.AutoMigrate(&domain.StoredRecord{}); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("records table migrated")

		verifier, err := apiVerifier(cfg.Auth)
		if err != nil {
			return nil, err
		}
		repo := records.NewRecordRepository(db)
		svc := records.NewRecordService(repo, cat, validator)
		handler := records.NewRecordHandler(svc, cat, validator.MaxUploadSize())
		modules = append(modules, records.NewModule(handler, middleware.Actor(verifier)))
	}

	// 4. Dashboard: one collection client per entity, built on first use.
	backends, err := newBackendPool(cfg, log.Logger, m)
	if err != nil {
		return nil, err
	}
	confirm, err := dashboard.NewConfirmTokens(csrfSecret, config.ParseDuration(cfg.Dashboard.ConfirmTTL, dashboard.DefaultConfirmTTL))
	if err != nil {
		return nil, fmt.Errorf("setup delete confirmation: %w", err)
	}
	pageHandler, err := dashboard.NewPageHandler(dashboard.PageDeps{
		Catalog:             cat,
		Backends:            backends.get,
		Session:             backends.session,
		Validator:           validator,
		Confirm:             confirm,
		Logger:              log.Logger,
		OverviewConcurrency: cfg.Dashboard.OverviewConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("setup dashboard: %w", err)
	}
	modules = append(modules, dashboard.NewModule(pageHandler))

	// 5. Gin engine with custom middleware (not gin.Default()).
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	corsConfig := resolveCORSConfig(cfg.Server.Mode, cfg.Server.CORS)

	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: cfg.Server.TrustRequestID,
			TrustLoopback: cfg.Backend.Embedded,
		}),
		middleware.Logger(log.Logger),
		m.Middleware(),
		middleware.CORSWithConfig(corsConfig),
		middleware.Timeout(config.ParseDuration(cfg.Server.Timeout, 0)),
	)

	var pageMiddleware []gin.HandlerFunc
	if rl := cfg.Server.RateLimit; rl.Enabled {
		pageMiddleware = append(pageMiddleware, middleware.RateLimit(rl.RPS, rl.Burst, log.Logger))
	}

	// 6. Template renderer: disk in debug mode, embedded otherwise.
	var fsys fs.FS
	if cfg.Server.Mode == gin.DebugMode {
		fsys, err = resolveDebugWebFS()
		if err != nil {
			return nil, fmt.Errorf("resolve debug template fs: %w", err)
		}
	} else {
		fsys = web.EmbeddedFS
	}

	renderer, err := NewTemplateRenderer(fsys, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer

	// 7. Routes.
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:        modules,
		DB:             db,
		Mode:           cfg.Server.Mode,
		CSRFSecret:     csrfSecret,
		Metrics:        m.Handler(),
		PageMiddleware: pageMiddleware,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}
	names := make([]string, 0, len(modules))
	for _, mod := range modules {
		names = append(names, mod.Name())
	}
	log.Info("modules registered", slog.Any("modules", names), slog.Bool("embedded_backend", cfg.Backend.Embedded))

	success = true
	return &App{
		engine: engine,
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

// Handler returns the configured router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.engine
}

// apiVerifier returns the bearer token verifier for the records API, or nil
// when auth is disabled and the API trusts X-Actor-ID.
func apiVerifier(cfg config.AuthConfig) (middleware.TokenVerifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	v, err := session.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("setup token verifier: %w", err)
	}
	return v, nil
}

// backendPool hands out one collection client per entity, shared by every
// dashboard request.
type backendPool struct {
	baseURL string
	opts    []remote.Option
	session domain.Session

	mu      sync.Mutex
	clients map[string]*remote.Client
}

func newBackendPool(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*backendPool, error) {
	sess := domain.Session{UserID: cfg.Backend.Operator.ID, UserName: cfg.Backend.Operator.Name}
	opts := []remote.Option{
		remote.WithTimeout(config.ParseDuration(cfg.Backend.Timeout, remote.DefaultTimeout)),
		remote.WithSession(sess),
		remote.WithLogger(log),
		remote.WithObserver(m),
	}
	if cfg.Auth.Enabled {
		signer, err := session.NewSigner(cfg.Auth.JWTSecret, config.ParseDuration(cfg.Auth.TokenExpiry, 5*time.Minute))
		if err != nil {
			return nil, fmt.Errorf("setup token signer: %w", err)
		}
		opts = append(opts, remote.WithSigner(signer))
	}
	return &backendPool{
		baseURL: cfg.Backend.BaseURL,
		opts:    opts,
		session: sess,
		clients: make(map[string]*remote.Client),
	}, nil
}

func (p *backendPool) get(e domain.Entity) (dashboard.Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[e.Name]; ok {
		return c, nil
	}
	c, err := remote.New(p.baseURL, e, p.opts...)
	if err != nil {
		return nil, err
	}
	p.clients[e.Name] = c
	return c, nil
}

// resolveCSRFSecret rejects weak secrets in release mode and substitutes a
// random one elsewhere.
func resolveCSRFSecret(mode, configured string) (string, error) {
	secret := strings.TrimSpace(configured)
	if isPlaceholderCSRFSecret(secret) {
		if mode == gin.ReleaseMode {
			return "", errors.New("csrf_secret must be a non-placeholder value in release mode")
		}
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate csrf secret: %w", err)
		}
		return hex.EncodeToString(b), nil
	}
	if mode == gin.ReleaseMode {
		if len(secret) < 32 {
			return "", errors.New("csrf_secret must be at least 32 characters in release mode")
		}
		if config.CountSecretClasses(secret) < 3 {
			return "", errors.New("csrf_secret must include at least 3 character classes in release mode")
		}
	}
	return secret, nil
}

func isPlaceholderCSRFSecret(secret string) bool {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return true
	}

	switch strings.ToLower(trimmed) {
	case "change-me-to-a-random-secret", "change-me-in-env":
		return true
	default:
		return false
	}
}

// resolveCORSConfig overlays configured values on the defaults. In release
// mode an empty allowlist denies cross-origin requests.
func resolveCORSConfig(mode string, configured config.CORSConfig) middleware.CORSConfig {
	corsConfig := middleware.DefaultCORSConfig()

	if len(configured.AllowMethods) > 0 {
		corsConfig.AllowMethods = configured.AllowMethods
	}
	if len(configured.AllowHeaders) > 0 {
		corsConfig.AllowHeaders = configured.AllowHeaders
	}
	if len(configured.ExposeHeaders) > 0 {
		corsConfig.ExposeHeaders = configured.ExposeHeaders
	}
	corsConfig.AllowCredentials = configured.AllowCredentials
	corsConfig.MaxAge = config.ParseDuration(configured.MaxAge, corsConfig.MaxAge)

	switch {
	case len(configured.AllowOrigins) > 0:
		corsConfig.AllowOrigins = configured.AllowOrigins
	case mode == gin.ReleaseMode:
		corsConfig.AllowOrigins = []string{}
	}
	return corsConfig
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

func resolveDebugWebFS() (fs.FS, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		webDir := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "web"))
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	exePath, err := os.Executable()
	if err == nil {
		webDir := filepath.Join(filepath.Dir(exePath), "web")
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	return nil, errors.New("debug web directory not found")
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It performs graceful shutdown with a 5-second timeout and closes the database
// connection.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine)

	// Listen for SIGINT / SIGTERM.
	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		if a.logger != nil {
			a.logger.Info("server started", slog.String("addr", addr))
		} else {
			slog.Info("server started", slog.String("addr", addr))
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		if a.logger != nil {
			a.logger.Info("shutdown signal received")
		} else {
			slog.Info("shutdown signal received")
		}
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		// Graceful shutdown with 5-second deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			if a.logger != nil {
				a.logger.Error("server shutdown error", slog.Any("error", err))
			} else {
				slog.Error("server shutdown error", slog.Any("error", err))
			}
		}
	}

	// Close the database connection.
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				if a.logger != nil {
					a.logger.Error("database close error", slog.Any("error", err))
				} else {
					slog.Error("database close error", slog.Any("error", err))
				}
			} else {
				if a.logger != nil {
					a.logger.Info("database connection closed")
				} else {
					slog.Info("database connection closed")
				}
			}
		}
	}

	if a.logger != nil {
		a.logger.Info("server stopped")
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	} else {
		slog.Info("server stopped")
	}

	if runErr != nil {
		return runErr
	}

	return nil
}

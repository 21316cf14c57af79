package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/simp-lee/logger"
	"github.com/spf13/cobra"

	"github.com/simp-lee/hrdesk/internal/catalog"
	"github.com/simp-lee/hrdesk/internal/config"
	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
	"github.com/simp-lee/hrdesk/internal/remote"
	"github.com/simp-lee/hrdesk/internal/session"
)

const defaultTokenExpiry = 5 * time.Minute

var errNoBackend = errors.New("no records API configured: pass --base-url or --config")

type globalOptions struct {
	configPath string
	baseURL    string
	output     string
	actor      string
	timeout    time.Duration
	verbose    bool
}

// backend is the resolved connection to the records API.
type backend struct {
	baseURL string
	timeout time.Duration
	session domain.Session
	signer  remote.TokenSigner
}

type cli struct {
	opts      globalOptions
	catalog   *catalog.Catalog
	validator *crud.Validator
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
	logger    *slog.Logger
	closeLog  func() error
	backend   *backend
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{
		catalog:   catalog.Default(),
		validator: crud.NewValidator(),
		in:        in,
		out:       out,
		errOut:    errOut,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	root := &cobra.Command{
		Use:   "hrctl",
		Short: "Browse and edit HR records through the records API",
		Long: `hrctl drives the records API of an hrdesk server. It validates input
with the same rules as the dashboard forms and asks before deleting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(c.opts.output); err != nil {
				return err
			}
			return c.setupLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.closeLogger()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "path to the server configuration file")
	flags.StringVar(&c.opts.baseURL, "base-url", "", "records API base url, overrides backend.base_url")
	flags.StringVarP(&c.opts.output, "output", "o", formatTable, "output format: table, json or yaml")
	flags.StringVar(&c.opts.actor, "actor", "", "user id mutations are attributed to")
	flags.DurationVar(&c.opts.timeout, "timeout", 0, "per-request timeout")
	flags.BoolVarP(&c.opts.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newEntitiesCmd(c),
		newListCmd(c),
		newCreateCmd(c),
		newUpdateCmd(c),
		newDeleteCmd(c),
	)
	return root
}

// setupLogger logs to stderr through the server's logging stack, at warn
// level unless --verbose is set.
func (c *cli) setupLogger() error {
	level := "warn"
	if c.opts.verbose {
		level = "debug"
	}
	noColor := false
	log, err := config.SetupLogger(&config.LogConfig{Level: level, Format: "text", Color: &noColor},
		config.WithConsole(c.errOut),
		config.KeepDefault(),
	)
	if err != nil {
		return err
	}
	c.logger = log.Logger
	c.closeLog = log.Close
	return nil
}

func (c *cli) closeLogger() {
	if c.closeLog != nil {
		_ = c.closeLog()
		c.closeLog = nil
	}
}

// requestContext tags every call of one invocation with a shared request id.
func (c *cli) requestContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithContextAttrs(ctx, slog.String("request_id", uuid.NewString()))
}

func (c *cli) entity(name string) (domain.Entity, error) {
	e, err := c.catalog.Lookup(name)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("%w (known: %s)", err, strings.Join(c.catalog.Names(), ", "))
	}
	return e, nil
}

// connect resolves the backend from the config file and flag overrides.
func (c *cli) connect() (*backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}

	b := &backend{timeout: remote.DefaultTimeout}
	if c.opts.configPath != "" {
		cfg, err := config.Load(c.opts.configPath)
		if err != nil {
			return nil, err
		}
		b.baseURL = cfg.Backend.BaseURL
		b.timeout = config.ParseDuration(cfg.Backend.Timeout, remote.DefaultTimeout)
		b.session = domain.Session{UserID: cfg.Backend.Operator.ID, UserName: cfg.Backend.Operator.Name}
		if cfg.Auth.Enabled {
			signer, err := session.NewSigner(cfg.Auth.JWTSecret, config.ParseDuration(cfg.Auth.TokenExpiry, defaultTokenExpiry))
			if err != nil {
				return nil, err
			}
			b.signer = signer
		}
	}

	if u := strings.TrimSpace(c.opts.baseURL); u != "" {
		b.baseURL = u
	}
	if a := strings.TrimSpace(c.opts.actor); a != "" {
		b.session = domain.Session{UserID: a}
	}
	if c.opts.timeout > 0 {
		b.timeout = c.opts.timeout
	}
	if b.baseURL == "" {
		return nil, errNoBackend
	}

	c.logger.Debug("resolved backend",
		slog.String("base_url", b.baseURL),
		slog.Duration("timeout", b.timeout),
		slog.String("actor", b.session.UserID),
	)
	c.backend = b
	return b, nil
}

func (c *cli) client(e domain.Entity) (*remote.Client, error) {
	b, err := c.connect()
	if err != nil {
		return nil, err
	}
	opts := []remote.Option{
		remote.WithTimeout(b.timeout),
		remote.WithSession(b.session),
		remote.WithLogger(c.logger),
	}
	if b.signer != nil {
		opts = append(opts, remote.WithSigner(b.signer))
	}
	return remote.New(b.baseURL, e, opts...)
}

// notifier writes success toasts to stderr so stdout stays machine
// readable. Failures surface as the command's error instead.
func (c *cli) notifier() crud.Notifier {
	return crud.NotifierFunc(func(t crud.Toast) {
		if t.Kind != crud.ToastSuccess {
			c.logger.Debug("toast", slog.String("type", string(t.Kind)), slog.String("message", t.Message))
			return
		}
		fmt.Fprintln(c.errOut, t.Message)
	})
}

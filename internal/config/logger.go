package config

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/simp-lee/logger"
)

type loggerSetup struct {
	console    io.Writer
	setDefault bool
}

// LoggerOption adjusts SetupLogger beyond what LogConfig carries.
type LoggerOption func(*loggerSetup)

// WithConsole sends console output to w instead of stderr.
func WithConsole(w io.Writer) LoggerOption {
	return func(s *loggerSetup) {
		if w != nil {
			s.console = w
		}
	}
}

// KeepDefault leaves the process-wide slog default untouched. hrctl uses it
// so a command never rewires logging for code it embeds.
func KeepDefault() LoggerOption {
	return func(s *loggerSetup) {
		s.setDefault = false
	}
}

// SetupLogger builds the structured logger described by cfg. Request ids
// attached with logger.WithContextAttrs show up on every record logged with
// a context. Unless KeepDefault is given the logger also becomes the slog
// default. The caller must Close it.
//
// Unknown levels fall back to info and unknown formats to the custom layout.
func SetupLogger(cfg *LogConfig, opts ...LoggerOption) (*logger.Logger, error) {
	if cfg == nil {
		return nil, errors.New("log config is nil")
	}
	setup := loggerSetup{setDefault: true}
	for _, opt := range opts {
		opt(&setup)
	}

	format := parseFormat(cfg.Format)
	colorEnabled := true
	if cfg.Color != nil {
		colorEnabled = *cfg.Color
	}

	options := []logger.Option{
		logger.WithLevel(parseLevel(cfg.Level)),
		logger.WithMiddleware(logger.ContextMiddleware()),
		logger.WithConsoleFormat(format),
		logger.WithConsoleColor(colorEnabled),
	}
	if setup.console != nil {
		options = append(options, logger.WithConsoleWriter(setup.console))
	}
	options = append(options, fileOptions(cfg, format)...)

	log, err := logger.New(options...)
	if err != nil {
		return nil, err
	}
	if setup.setDefault {
		log.SetDefault()
	}
	return log, nil
}

// fileOptions enables the rotating file sink when a path is configured.
func fileOptions(cfg *LogConfig, format logger.OutputFormat) []logger.Option {
	if cfg.FilePath == "" {
		return nil
	}
	opts := []logger.Option{
		logger.WithFilePath(cfg.FilePath),
		logger.WithFileFormat(format),
	}
	if cfg.MaxSizeMB > 0 {
		opts = append(opts, logger.WithMaxSizeMB(cfg.MaxSizeMB))
	}
	if cfg.RetentionDays > 0 {
		opts = append(opts, logger.WithRetentionDays(cfg.RetentionDays))
	}
	if cfg.MaxBackups > 0 {
		opts = append(opts, logger.WithMaxBackups(cfg.MaxBackups))
	}
	if cfg.CompressRotated != nil {
		opts = append(opts, logger.WithCompressRotated(*cfg.CompressRotated))
	}
	return opts
}

func parseFormat(s string) logger.OutputFormat {
	switch strings.ToLower(s) {
	case "text":
		return logger.FormatText
	case "json":
		return logger.FormatJSON
	default:
		return logger.FormatCustom
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/simp-lee/logger"
)

func boolPtr(b bool) *bool { return &b }

func TestSetupLogger_NilConfig(t *testing.T) {
	if _, err := SetupLogger(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestSetupLogger_LevelMapping(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"invalid defaults to info", "invalid", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := SetupLogger(&LogConfig{Level: tt.level, Format: "text"}, KeepDefault())
			if err != nil {
				t.Fatalf("SetupLogger error: %v", err)
			}
			defer log.Close()

			if !log.Enabled(context.TODO(), tt.wantLevel) {
				t.Errorf("expected level %v to be enabled", tt.wantLevel)
			}
			if tt.wantLevel > slog.LevelDebug && log.Enabled(context.TODO(), tt.wantLevel-1) {
				t.Errorf("expected level %v to be disabled", tt.wantLevel-1)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]logger.OutputFormat{
		"text":     logger.FormatText,
		"JSON":     logger.FormatJSON,
		"whatever": logger.FormatCustom,
		"":         logger.FormatCustom,
	}
	for in, want := range tests {
		if got := parseFormat(in); got != want {
			t.Errorf("parseFormat(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLogger_ConsoleWriterCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log, err := SetupLogger(&LogConfig{Level: "info", Format: "text", Color: boolPtr(false)},
		WithConsole(&buf), KeepDefault())
	if err != nil {
		t.Fatalf("SetupLogger error: %v", err)
	}
	defer log.Close()

	ctx := logger.WithContextAttrs(context.Background(), slog.String("request_id", "req-42"))
	log.InfoContext(ctx, "list fetched", slog.String("entity", "roles"))

	out := buf.String()
	for _, want := range []string{"list fetched", "entity=roles", "req-42"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected console output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSetupLogger_ConsoleAndFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "hrdesk.log")

	log, err := SetupLogger(&LogConfig{
		Level:           "info",
		Format:          "json",
		FilePath:        filePath,
		MaxSizeMB:       1,
		RetentionDays:   7,
		MaxBackups:      2,
		CompressRotated: boolPtr(true),
	}, WithConsole(&bytes.Buffer{}), KeepDefault())
	if err != nil {
		t.Fatalf("SetupLogger error: %v", err)
	}
	log.Info("record created", slog.String("entity", "departments"))
	if err := log.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "record created") {
		t.Errorf("expected log file to contain the record, got:\n%s", data)
	}
}

func TestFileOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  LogConfig
		want int
	}{
		{"no path", LogConfig{MaxSizeMB: 10}, 0},
		{"path only", LogConfig{FilePath: "/tmp/x.log"}, 2},
		{"rotation", LogConfig{FilePath: "/tmp/x.log", MaxSizeMB: 10, RetentionDays: 3, MaxBackups: 2}, 5},
		{"compress", LogConfig{FilePath: "/tmp/x.log", CompressRotated: boolPtr(false)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(fileOptions(&tt.cfg, logger.FormatText)); got != tt.want {
				t.Errorf("fileOptions() returned %d options, want %d", got, tt.want)
			}
		})
	}
}

func TestSetupLogger_DefaultHandling(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	kept, err := SetupLogger(&LogConfig{Level: "warn", Format: "text"}, KeepDefault())
	if err != nil {
		t.Fatalf("SetupLogger error: %v", err)
	}
	defer kept.Close()
	if slog.Default().Handler() == kept.Handler() {
		t.Error("KeepDefault should leave slog.Default() untouched")
	}

	log, err := SetupLogger(&LogConfig{Level: "warn", Format: "text"})
	if err != nil {
		t.Fatalf("SetupLogger error: %v", err)
	}
	defer log.Close()
	if slog.Default().Handler() != log.Handler() {
		t.Error("SetupLogger did not set slog.Default()")
	}
}

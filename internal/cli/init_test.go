package cli

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"horas/internal/config"
	applog "horas/internal/log"
)

func TestLoggerConfig(t *testing.T) {
	cfg := &config.Config{LogLevel: "debug", LogFormat: "json", LogFile: "/tmp/horas.log", LogMaxBackups: 2}
	lc := LoggerConfig(cfg, applog.ComponentWorker)
	if lc.Level != slog.LevelDebug || lc.Format != "json" || lc.File != "/tmp/horas.log" {
		t.Errorf("unexpected config %+v", lc)
	}
	if lc.MaxBackups != 2 || lc.MaxSizeMB != applog.DefaultConfig().MaxSizeMB {
		t.Errorf("rotation settings not merged: %+v", lc)
	}
	if lc.Component != applog.ComponentWorker {
		t.Errorf("component = %q", lc.Component)
	}

	lc = LoggerConfig(&config.Config{LogLevel: "loud"}, applog.ComponentApp)
	if lc.Level != slog.LevelInfo {
		t.Errorf("unknown level must fall back to info, got %v", lc.Level)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("HORAS_TEST_FROM_FILE=yes\nHORAS_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("HORAS_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("HORAS_TEST_FROM_FILE") })

	LoadEnvFile()

	if got := os.Getenv("HORAS_TEST_FROM_FILE"); got != "yes" {
		t.Errorf("HORAS_TEST_FROM_FILE = %q", got)
	}
	if got := os.Getenv("HORAS_TEST_PRESET"); got != "env" {
		t.Errorf("existing variables must win, got %q", got)
	}
}

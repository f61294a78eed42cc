package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"horas/internal/adapters"
	"horas/internal/amqp"
	"horas/internal/config"
	"horas/internal/core"
)

func quietFactory() *DefaultFactory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil))).(*DefaultFactory)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"postgres without url", Config{Type: PostgresBackend}, "DATABASE_URL"},
		{"unknown", Config{Type: "sheets"}, "invalid backend type"},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x", AMQPExchange: "horas"}, "AMQP exchange and queue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "postgres", DatabaseURL: "postgres://db", SeedDir: "seed", AMQPAuditQueue: "flagged"}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != PostgresBackend || got.DatabaseURL != "postgres://db" || got.DataDirectory != "seed" || got.AMQPAuditQueue != "flagged" {
		t.Errorf("unexpected config %+v", got)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "projects.txt"), []byte("P1|Portal\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer res.Close()
	if res.Pinger != nil || res.Events != nil {
		t.Errorf("memory backend has no pinger or events: %+v", res)
	}
	cat, err := res.Gateway.FetchCatalog(context.Background())
	if err != nil || len(cat.Projects) != 1 || cat.Projects[0].Name != "Portal" {
		t.Fatalf("unexpected catalog %+v err=%v", cat, err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "horas.db")
	res, err := quietFactory().CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer res.Close()
	if err := res.Pinger.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	date := core.NewDate(2025, 3, 3)
	if err := res.Gateway.SaveDay(ctx, "ana", date, 8, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	pending, err := res.Store.PendingSync(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending day, got %+v err=%v", pending, err)
	}
}

func TestAMQPFailureKeepsBackend(t *testing.T) {
	f := quietFactory()
	f.dial = func(string, string, string, string) (*amqp.Client, error) {
		return nil, errors.New("connection refused")
	}
	res, err := f.CreateBackend(context.Background(), Config{
		Type:          MemoryBackend,
		DataDirectory: t.TempDir(),
		AMQPURL:       "amqp://localhost",
		AMQPExchange:  "horas",
		AMQPQueue:     "sync_days",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Events != nil {
		t.Error("events must stay disabled")
	}
	if _, ok := res.Gateway.(*adapters.PublishingGateway); ok {
		t.Error("gateway must not be wrapped without a broker")
	}
}

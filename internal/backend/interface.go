package backend

import (
	"context"

	"horas/internal/amqp"
	"horas/internal/gateway"
)

// Store is the full persistence surface the binaries need: the ledger
// gateway plus the sync queue, the activity index and the catalog mirror.
type Store interface {
	gateway.Gateway
	gateway.SyncQueue
	gateway.ActivityLister
	gateway.CatalogWriter
}

// CleanupFunc releases what a backend holds open.
type CleanupFunc func() error

// BackendResult carries a constructed backend.
type BackendResult struct {
	// Store is the raw store, used by workers.
	Store Store
	// Gateway is what the ledger service writes through. It equals Store
	// unless AMQP is enabled, in which case every save is also announced.
	Gateway gateway.Gateway
	// Pinger is nil for the memory backend.
	Pinger gateway.Pinger
	// Events is nil when AMQP is disabled or unreachable.
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	// DataDirectory seeds the memory backend's catalog.
	DataDirectory string

	AMQPURL        string
	AMQPExchange   string
	AMQPQueue      string
	AMQPAuditQueue string
}

type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"waitroom-triage/pkg"
)

// Store is the full persistence contract used by the server and the CLI.
// Both Repository and MemoryStore implement it.
type Store interface {
	GetOrCreateSession(ctx context.Context, conversationID, patientID string) (*pkg.TriageSession, error)
	GetSession(ctx context.Context, conversationID string) (*pkg.TriageSession, error)
	SaveSession(ctx context.Context, s *pkg.TriageSession) error
	ListSessions(ctx context.Context, limit int) ([]pkg.SessionPreview, error)
	AppendMessage(ctx context.Context, conversationID string, role pkg.MessageRole, content string, at time.Time) error
	GetTranscript(ctx context.Context, conversationID string, limit int) ([]pkg.Message, error)
	CountMessages(ctx context.Context, conversationID string, role pkg.MessageRole) (int, error)
	AddHandoffTicket(ctx context.Context, t *pkg.HandoffTicket) error
	ListHandoffTickets(ctx context.Context, limit int) ([]pkg.HandoffTicket, error)
	ResolveHandoffTicket(ctx context.Context, ticketID string) (int, error)
	Close() error
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Options select and configure a store.
type Options struct {
	Driver        string
	DSN           string
	EncryptionKey string
	NotifyChannel string
	Logger        *zap.Logger
}

// Open connects to the configured store and applies the schema. For
// postgres it also returns the Notifier used for handoff announcements;
// the notifier is nil for other drivers.
func Open(ctx context.Context, opts Options) (Store, *Notifier, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch opts.Driver {
	case "memory":
		return NewMemoryStore(), nil, nil
	case string(DialectSQLite):
		if dir := filepath.Dir(opts.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		conn, err := sql.Open("sqlite", opts.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		// one writer; sqlite serialises anyway
		conn.SetMaxOpenConns(1)
		if err := prepare(ctx, conn, DialectSQLite); err != nil {
			return nil, nil, err
		}
		return NewRepository(conn, DialectSQLite, NewCipher(opts.EncryptionKey), nil, logger), nil, nil
	case string(DialectPostgres):
		conn, err := sql.Open("postgres", opts.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := prepare(ctx, conn, DialectPostgres); err != nil {
			return nil, nil, err
		}
		notifier := NewNotifier(conn, opts.DSN, opts.NotifyChannel, logger)
		return NewRepository(conn, DialectPostgres, NewCipher(opts.EncryptionKey), notifier, logger), notifier, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}
}

func prepare(ctx context.Context, conn *sql.DB, dialect Dialect) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := Migrate(ctx, conn, dialect); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

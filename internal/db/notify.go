package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Notifier wraps LISTEN/NOTIFY in PostgreSQL. The repository announces every
// new handoff ticket on Channel; clinician tooling listens for ticket ids.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
	logger  *zap.Logger
}

// NewNotifier constructs a new Notifier. The channel should match the
// POSTGRES_NOTIFY_CHANNEL environment variable.
func NewNotifier(db *sql.DB, dsn, channel string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{DB: db, DSN: dsn, Channel: channel, logger: logger}
}

// Notify sends ticketID as the payload on the channel.
func (n *Notifier) Notify(ctx context.Context, ticketID string) error {
	if _, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, ticketID); err != nil {
		return fmt.Errorf("notify %s: %w", n.Channel, err)
	}
	return nil
}

// Listen yields ticket ids as they are announced. The returned channel is
// closed when ctx is cancelled.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	l := pq.NewListener(n.DSN, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.logger.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := l.Listen(n.Channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen %s: %w", n.Channel, err)
	}

	ch := make(chan string)
	go func() {
		defer func() {
			_ = l.Close()
			close(ch)
		}()
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case note := <-l.Notify:
				// nil after a reconnect
				if note == nil {
					continue
				}
				select {
				case ch <- note.Extra:
				case <-ctx.Done():
					return
				}
			case <-ping.C:
				if err := l.Ping(); err != nil {
					n.logger.Warn("listener ping failed", zap.Error(err))
				}
			}
		}
	}()
	return ch, nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Notifier publishes emergency-flagged request IDs with PostgreSQL NOTIFY so
// an on-call dashboard can LISTEN for them.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier constructs a new Notifier. The channel should match the
// POSTGRES_NOTIFY_CHANNEL environment variable.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{DB: db, Channel: channel}
}

// Notify sends the request ID on the configured channel.
func (n *Notifier) Notify(ctx context.Context, requestID string) error {
	_, err := n.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", n.Channel, requestID)
	return err
}

// Listen delivers payloads received on the channel until ctx is cancelled.
// It opens its own connection through pq.Listener.
func Listen(ctx context.Context, dsn, channel string) (<-chan string, error) {
	listener := pq.NewListener(dsn, time.Second, time.Minute, nil)
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", pq.QuoteIdentifier(channel), err)
	}
	ch := make(chan string)
	go func() {
		defer func() {
			_ = listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnect
				if n == nil {
					continue
				}
				select {
				case ch <- n.Extra:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

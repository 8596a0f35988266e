package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ChangeKind identifies what the store reported.
type ChangeKind string

const (
	AccountAdded    ChangeKind = "account_added"
	AccountModified ChangeKind = "account_modified"
	AccountRemoved  ChangeKind = "account_removed"
	ConfigUpdated   ChangeKind = "config_updated"
	// Resync is emitted after the listener reconnects; the consumer should
	// re-read the whole account collection since notifications may have been
	// missed while disconnected.
	Resync ChangeKind = "resync"
)

// Change is one event from the store's change subscription.
type Change struct {
	Kind ChangeKind
	ID   string
}

const (
	accountChannel = "account_events"
	configChannel  = "config_events"

	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// ChangeStream converts Postgres NOTIFY events (raised by triggers on the
// accounts and engine_config tables) into typed Change values.
type ChangeStream struct {
	listener *pq.Listener
	logger   *slog.Logger
}

// NewChangeStream opens a dedicated listening connection and subscribes to
// the account and config channels.
func NewChangeStream(dsn string, logger *slog.Logger) (*ChangeStream, error) {
	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("store listener event", "event", int(event), "error", err)
			}
		})

	for _, channel := range []string{accountChannel, configChannel} {
		if err := listener.Listen(channel); err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
		}
	}

	return &ChangeStream{listener: listener, logger: logger}, nil
}

// Run pumps changes into out until ctx is canceled. It periodically pings
// the listening connection so dead connections are detected and re-dialed.
func (s *ChangeStream) Run(ctx context.Context, out chan<- Change) error {
	defer s.listener.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case notification := <-s.listener.Notify:
			// A nil notification signals that the connection was
			// re-established; anything sent in between was lost.
			if notification == nil {
				s.logger.Warn("store listener reconnected, requesting resync")
				if !s.emit(ctx, out, Change{Kind: Resync}) {
					return ctx.Err()
				}
				continue
			}

			change, err := decodeNotification(notification.Channel, notification.Extra)
			if err != nil {
				s.logger.Warn("ignoring malformed store notification",
					"channel", notification.Channel, "payload", notification.Extra, "error", err)
				continue
			}
			if !s.emit(ctx, out, change) {
				return ctx.Err()
			}

		case <-time.After(pingInterval):
			if err := s.listener.Ping(); err != nil {
				s.logger.Warn("store listener ping failed", "error", err)
			}
		}
	}
}

func (s *ChangeStream) emit(ctx context.Context, out chan<- Change, change Change) bool {
	select {
	case out <- change:
		return true
	case <-ctx.Done():
		return false
	}
}

type notifyPayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

func decodeNotification(channel, payload string) (Change, error) {
	if channel == configChannel {
		return Change{Kind: ConfigUpdated}, nil
	}

	var body notifyPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return Change{}, fmt.Errorf("invalid payload: %w", err)
	}
	if body.ID == "" {
		return Change{}, fmt.Errorf("payload missing id")
	}

	switch body.Op {
	case "INSERT":
		return Change{Kind: AccountAdded, ID: body.ID}, nil
	case "UPDATE":
		return Change{Kind: AccountModified, ID: body.ID}, nil
	case "DELETE":
		return Change{Kind: AccountRemoved, ID: body.ID}, nil
	default:
		return Change{}, fmt.Errorf("unknown op %q", body.Op)
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

var ErrEmptyMessage = errors.New("task message is empty")

// Config configures storage.
//
// Driver values: "sqlite" (default when empty). Path ":memory:" gives an
// in-process database, used by tests.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Store is the persistence API used by ingest and dispatch.
type Store interface {
	// Create persists a new pending task and returns its assigned id.
	// The message must be non-empty; the send time is truncated to the
	// minute before it is stored.
	Create(ctx context.Context, t task.NotificationTask) (int64, error)

	// FindDueAt returns pending tasks whose send time equals dueAt's
	// minute exactly. Strict equality: a minute skipped by the poller is
	// never delivered retroactively.
	FindDueAt(ctx context.Context, dueAt time.Time) ([]task.NotificationTask, error)

	// Claim atomically moves a pending task to dispatched. It returns
	// false when the task was already claimed (or does not exist), so
	// overlapping dispatch cycles cannot double-send.
	Claim(ctx context.Context, id int64) (bool, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

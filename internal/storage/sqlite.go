package storage

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sqlx.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// taskRow is the sqlite representation of a task. send_time is stored as
// unix seconds so the due query is a plain integer comparison regardless of
// zone formatting.
type taskRow struct {
	ID       int64  `db:"id"`
	ChatID   int64  `db:"chat_id"`
	Message  string `db:"message"`
	SendTime int64  `db:"send_time"`
	Status   string `db:"status"`
}

func (r taskRow) toTask() task.NotificationTask {
	return task.NotificationTask{
		ID:       r.ID,
		ChatID:   r.ChatID,
		Message:  r.Message,
		SendTime: time.Unix(r.SendTime, 0),
		Status:   task.Status(r.Status),
	}
}

func (s *sqliteStore) Create(ctx context.Context, t task.NotificationTask) (int64, error) {
	if t.Message == "" {
		return 0, ErrEmptyMessage
	}
	sendAt := t.SendTime.Truncate(time.Minute)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_tasks (chat_id, message, send_time, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ChatID, t.Message, sendAt.Unix(), string(task.StatusPending),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("creating task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading assigned task id: %w", err)
	}
	return id, nil
}

func (s *sqliteStore) FindDueAt(ctx context.Context, dueAt time.Time) ([]task.NotificationTask, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, chat_id, message, send_time, status
		 FROM notification_tasks
		 WHERE send_time = ? AND status = ?`,
		dueAt.Truncate(time.Minute).Unix(), string(task.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("querying due tasks: %w", err)
	}

	out := make([]task.NotificationTask, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTask())
	}
	return out, nil
}

func (s *sqliteStore) Claim(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification_tasks SET status = ? WHERE id = ? AND status = ?`,
		string(task.StatusDispatched), id, string(task.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("claiming task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

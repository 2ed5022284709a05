// Package dispatch delivers due notification tasks.
//
// A cron trigger fires once per minute at second 0. Each cycle truncates the
// wall clock to the minute, queries the store for tasks due at exactly that
// minute, claims each one, and sends it. The claim is what makes delivery
// fire-once: a cycle that overlaps a slow predecessor, or a second poll in
// the same minute, finds nothing left to claim.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"remindbot/internal/task"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// everyMinute fires at second 0 of every minute.
const everyMinute = "* * * * *"

// Store is the slice of the task store the dispatcher needs.
type Store interface {
	FindDueAt(ctx context.Context, dueAt time.Time) ([]task.NotificationTask, error)
	Claim(ctx context.Context, id int64) (bool, error)
}

// Sender is the outbound side of the transport.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string) (kit.MessageRef, error)
}

type Config struct {
	Enabled bool
	// Timezone for the trigger clock. Empty means the process-local zone.
	Timezone string
}

type Service struct {
	cfg    Config
	log    logx.Logger
	store  Store
	sender Sender
	loc    *time.Location

	// now is a test seam; defaults to time.Now.
	now func() time.Time

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, store Store, sender Sender, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, err
		}
		loc = l
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		store:  store,
		sender: sender,
		loc:    loc,
		now:    time.Now,
	}, nil
}

// Location returns the trigger/parse timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Start registers the minute trigger. Idempotent; a no-op when disabled.
func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("dispatcher disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(everyMinute, func() { s.runCycle(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("dispatcher started", logx.String("tz", s.loc.String()))
	return nil
}

// Stop halts the trigger and waits for an in-flight cycle, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		s.log.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("dispatcher stop timed out", logx.Err(ctx.Err()))
		return ctx.Err()
	}
}

// runCycle is one dispatch cycle: query-and-send for the current minute.
// A failure for one task never suppresses the rest of the batch.
func (s *Service) runCycle(ctx context.Context) {
	cycle := uuid.NewString()
	log := s.log.With(logx.String("cycle", cycle))

	dueAt := s.now().In(s.loc).Truncate(time.Minute)
	tasks, err := s.store.FindDueAt(ctx, dueAt)
	if err != nil {
		log.Error("due task query failed", logx.Time("due_at", dueAt), logx.Err(err))
		return
	}
	if len(tasks) == 0 {
		return
	}
	log.Debug("dispatch cycle", logx.Time("due_at", dueAt), logx.Int("due", len(tasks)))

	sent, failed := 0, 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return
		}

		claimed, err := s.store.Claim(ctx, t.ID)
		if err != nil {
			log.Error("task claim failed", logx.Int64("task_id", t.ID), logx.Err(err))
			failed++
			continue
		}
		if !claimed {
			// Another cycle got here first.
			log.Debug("task already claimed", logx.Int64("task_id", t.ID))
			continue
		}

		if _, err := s.sender.SendText(ctx, kit.ChatTarget{ChatID: t.ChatID}, t.Message); err != nil {
			// Single attempt: the task stays dispatched, the failure is
			// recorded, and the rest of the batch proceeds.
			log.Error("notification send failed",
				logx.Int64("task_id", t.ID),
				logx.Int64("chat_id", t.ChatID),
				logx.Err(err))
			failed++
			continue
		}
		sent++
		log.Info("notification delivered",
			logx.Int64("task_id", t.ID),
			logx.Int64("chat_id", t.ChatID))
	}

	if failed > 0 {
		log.Warn("dispatch cycle finished with failures", logx.Int("sent", sent), logx.Int("failed", failed))
	}
}

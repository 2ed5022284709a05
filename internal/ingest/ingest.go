// Package ingest turns inbound chat messages into notification tasks.
package ingest

import (
	"context"
	"sync"

	"remindbot/internal/task"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const startCommand = "/start"

// DefaultGreeting is the /start reply when none is configured.
const DefaultGreeting = "Hello new User!"

// TaskCreator is the slice of the store the ingester needs.
type TaskCreator interface {
	Create(ctx context.Context, t task.NotificationTask) (int64, error)
}

// Sender is the outbound side of the transport.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string) (kit.MessageRef, error)
}

type Config struct {
	Greeting string
}

// Service consumes transport updates. A message that is exactly /start gets
// one greeting reply; a message matching the reminder pattern becomes a
// persisted task; everything else is ignored without error.
type Service struct {
	log    logx.Logger
	parser *task.Parser
	store  TaskCreator
	sender Sender

	mu       sync.Mutex
	greeting string
}

func New(cfg Config, parser *task.Parser, store TaskCreator, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	greeting := cfg.Greeting
	if greeting == "" {
		greeting = DefaultGreeting
	}
	return &Service{
		log:      log,
		parser:   parser,
		store:    store,
		sender:   sender,
		greeting: greeting,
	}
}

// SetGreeting swaps the /start reply (config hot reload).
func (s *Service) SetGreeting(text string) {
	if text == "" {
		text = DefaultGreeting
	}
	s.mu.Lock()
	s.greeting = text
	s.mu.Unlock()
}

// Run consumes updates until ctx is done. It is the single consumer of the
// adapter's update channel; the dispatcher runs independently.
func (s *Service) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			s.Handle(ctx, up)
		}
	}
}

// Handle processes one update.
func (s *Service) Handle(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	s.log.Debug("processing update",
		logx.Int64("chat_id", msg.ChatID),
		logx.String("from", msg.FromUsername))

	if msg.Text == startCommand {
		s.mu.Lock()
		greeting := s.greeting
		s.mu.Unlock()
		if _, err := s.sender.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, greeting); err != nil {
			s.log.Warn("greeting send failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		}
		return
	}

	rem, ok := s.parser.Parse(msg.Text)
	if !ok {
		// Most chat messages are not reminder requests.
		return
	}

	id, err := s.store.Create(ctx, task.NotificationTask{
		ChatID:   msg.ChatID,
		Message:  rem.Message,
		SendTime: rem.SendTime,
	})
	if err != nil {
		// Storage failure threatens durability; surface it loudly. There is
		// no user-facing error channel for ingestion.
		s.log.Error("task create failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		return
	}

	s.log.Info("reminder scheduled",
		logx.Int64("task_id", id),
		logx.Int64("chat_id", msg.ChatID),
		logx.Time("send_at", rem.SendTime))
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"remindbot/internal/task"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type fakeStore struct {
	mu      sync.Mutex
	created []task.NotificationTask
	nextID  int64
	err     error
}

func (f *fakeStore) Create(_ context.Context, t task.NotificationTask) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	t.ID = f.nextID
	f.created = append(f.created, t)
	return f.nextID, nil
}

func (f *fakeStore) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeSender struct {
	sent []sentText
	err  error
}

type sentText struct {
	chatID int64
	text   string
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string) (kit.MessageRef, error) {
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.sent = append(f.sent, sentText{chatID: to.ChatID, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func newTestService(store *fakeStore, sender *fakeSender) *Service {
	return New(Config{}, task.NewParser(time.UTC), store, sender, logx.Nop())
}

func msgUpdate(chatID int64, text string) kit.Update {
	return kit.Update{Message: &kit.Message{ID: 1, ChatID: chatID, FromID: chatID, Text: text}}
}

func TestHandleCreatesTaskFromMatch(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	sender := &fakeSender{}
	s := newTestService(store, sender)

	s.Handle(context.Background(), msgUpdate(42, "01.01.2030 10:00 Buy milk"))

	if len(store.created) != 1 {
		t.Fatalf("created %d tasks, want 1", len(store.created))
	}
	got := store.created[0]
	if got.ChatID != 42 {
		t.Fatalf("ChatID = %d, want 42", got.ChatID)
	}
	if got.Message != "Buy milk" {
		t.Fatalf("Message = %q, want %q", got.Message, "Buy milk")
	}
	want := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	if !got.SendTime.Equal(want) {
		t.Fatalf("SendTime = %v, want %v", got.SendTime, want)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("unexpected outbound messages: %+v", sender.sent)
	}
}

func TestHandleIgnoresNonMatch(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	sender := &fakeSender{}
	s := newTestService(store, sender)

	for _, text := range []string{"hello there", "", "today 10:00 call"} {
		s.Handle(context.Background(), msgUpdate(42, text))
	}

	if len(store.created) != 0 {
		t.Fatalf("created %d tasks, want 0", len(store.created))
	}
	if len(sender.sent) != 0 {
		t.Fatalf("unexpected outbound messages: %+v", sender.sent)
	}
}

func TestHandleStartGreeting(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	sender := &fakeSender{}
	s := newTestService(store, sender)

	s.Handle(context.Background(), msgUpdate(7, "/start"))

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].chatID != 7 {
		t.Fatalf("greeting chat = %d, want 7", sender.sent[0].chatID)
	}
	if sender.sent[0].text != DefaultGreeting {
		t.Fatalf("greeting = %q, want %q", sender.sent[0].text, DefaultGreeting)
	}
	if len(store.created) != 0 {
		t.Fatalf("greeting created tasks: %+v", store.created)
	}

	// Only an exact match triggers the greeting.
	s.Handle(context.Background(), msgUpdate(7, "/start please"))
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want still 1", len(sender.sent))
	}
}

func TestSetGreeting(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	sender := &fakeSender{}
	s := newTestService(store, sender)
	s.SetGreeting("Welcome!")

	s.Handle(context.Background(), msgUpdate(7, "/start"))

	if len(sender.sent) != 1 || sender.sent[0].text != "Welcome!" {
		t.Fatalf("unexpected greeting: %+v", sender.sent)
	}
}

func TestHandleStoreFailureIsContained(t *testing.T) {
	t.Parallel()
	store := &fakeStore{err: errors.New("disk full")}
	sender := &fakeSender{}
	s := newTestService(store, sender)

	// Must not panic and must not message the user.
	s.Handle(context.Background(), msgUpdate(42, "01.01.2030 10:00 Buy milk"))
	if len(sender.sent) != 0 {
		t.Fatalf("unexpected outbound messages: %+v", sender.sent)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	sender := &fakeSender{}
	s := newTestService(store, sender)

	updates := make(chan kit.Update, 1)
	updates <- msgUpdate(42, "01.01.2030 10:00 Buy milk")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, updates)
		close(done)
	}()

	// The queued update is handled, then cancel stops the loop.
	deadline := time.After(2 * time.Second)
	for store.createdCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("update was not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

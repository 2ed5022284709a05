package storage

import (
	"context"
	"testing"
	"time"

	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

// newTestStore opens an in-memory store and closes it with the test.
func newTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: ":memory:"}, logx.Nop())
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return st
}

func TestCreateAssignsDistinctIDs(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		id, err := st.Create(ctx, task.NotificationTask{ChatID: 42, Message: "Buy milk", SendTime: at})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[id] {
			t.Fatalf("id %d assigned twice", id)
		}
		seen[id] = true
	}
}

func TestCreateRejectsEmptyMessage(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	_, err := st.Create(context.Background(), task.NotificationTask{ChatID: 1, SendTime: time.Now()})
	if err != ErrEmptyMessage {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestCreateTruncatesSendTime(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2030, 1, 1, 10, 0, 37, 123, time.UTC)
	if _, err := st.Create(ctx, task.NotificationTask{ChatID: 7, Message: "m", SendTime: at}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	due, err := st.FindDueAt(ctx, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FindDueAt: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d due tasks, want 1", len(due))
	}
	if s := due[0].SendTime.Second(); s != 0 {
		t.Fatalf("stored send time has seconds: %d", s)
	}
}

func TestFindDueAtExactMinuteOnly(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	id, err := st.Create(ctx, task.NotificationTask{ChatID: 42, Message: "Buy milk", SendTime: at})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name  string
		probe time.Time
		want  int
	}{
		{name: "due minute", probe: at, want: 1},
		{name: "due minute with jitter seconds", probe: at.Add(14 * time.Second), want: 1},
		{name: "one minute early", probe: at.Add(-time.Minute), want: 0},
		{name: "one minute late", probe: at.Add(time.Minute), want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			due, err := st.FindDueAt(ctx, tt.probe)
			if err != nil {
				t.Fatalf("FindDueAt: %v", err)
			}
			if len(due) != tt.want {
				t.Fatalf("got %d due tasks, want %d", len(due), tt.want)
			}
			if tt.want == 1 {
				got := due[0]
				if got.ID != id || got.ChatID != 42 || got.Message != "Buy milk" {
					t.Fatalf("unexpected task: %+v", got)
				}
				if got.SendTime.Unix() != at.Unix() {
					t.Fatalf("SendTime = %v, want %v", got.SendTime, at)
				}
			}
		})
	}
}

func TestClaimIsExactlyOnce(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	id, err := st.Create(ctx, task.NotificationTask{ChatID: 42, Message: "Buy milk", SendTime: at})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := st.Claim(ctx, id)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim failed")
	}

	claimed, err = st.Claim(ctx, id)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed {
		t.Fatal("second claim succeeded, want exactly-once")
	}

	// Claimed tasks are no longer due.
	due, err := st.FindDueAt(ctx, at)
	if err != nil {
		t.Fatalf("FindDueAt: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("claimed task still due: %+v", due)
	}
}

func TestClaimUnknownID(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	claimed, err := st.Claim(context.Background(), 12345)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed {
		t.Fatal("claimed a task that does not exist")
	}
}

func TestDuplicateTasksAreSeparate(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	// No deduplication: identical messages produce independent tasks.
	for i := 0; i < 2; i++ {
		if _, err := st.Create(ctx, task.NotificationTask{ChatID: 42, Message: "Buy milk", SendTime: at}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	due, err := st.FindDueAt(ctx, at)
	if err != nil {
		t.Fatalf("FindDueAt: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("got %d due tasks, want 2", len(due))
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

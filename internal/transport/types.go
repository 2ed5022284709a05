package transport

import "context"

// Update is one inbound event from the messaging platform.
// Only plain text messages are routed; anything else is dropped at the
// adapter boundary.
type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Adapter is the messaging transport seen by the rest of the app.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string) (MessageRef, error)
}

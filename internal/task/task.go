package task

import "time"

// Status tracks whether a task has been handed to the transport.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
)

// NotificationTask is a persisted request to deliver Message to ChatID at
// SendTime. SendTime is minute-aligned (zero seconds/nanoseconds); the store
// enforces this on create. All fields except Status are immutable after
// creation.
type NotificationTask struct {
	ID       int64
	ChatID   int64
	Message  string
	SendTime time.Time
	Status   Status
}

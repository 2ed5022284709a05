// Package storage persists notification tasks.
//
// The backend is SQLite (modernc, no cgo) behind sqlx. The schema lives in
// the embedded migrations.sql. Concurrency model: the ingest path creates
// tasks while the dispatcher queries and claims them; SQLite serializes the
// writes, and the pending->dispatched claim is a conditional UPDATE so a
// task can be claimed exactly once.
package storage

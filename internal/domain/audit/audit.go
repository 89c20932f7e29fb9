// Package audit provides an append-only record of mutating actions. The
// recorder is fire-and-forget: callers never block on it and its failures
// never surface to the primary operation.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one audit record.
type Entry struct {
	ActorID   uuid.UUID
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Sink persists audit entries; implemented by the storage layer.
type Sink interface {
	Insert(ctx context.Context, e Entry) error
}

// Nop is a Recorder that discards everything. Used in tests and tools that
// do not care about the audit trail.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

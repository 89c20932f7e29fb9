package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBuffer = 256
	insertTimeout = 5 * time.Second
)

// AsyncRecorder decouples audit writes from the request path. Record enqueues
// without blocking; a single background goroutine drains the queue into the
// Sink. When the queue is full or an insert fails, the entry is dropped and
// logged at warn.
type AsyncRecorder struct {
	sink Sink
	lg   *zap.Logger

	queue chan Entry
	done  chan struct{}
	once  sync.Once

	// mu guards queue sends against Close: Record holds the read side while
	// enqueueing, Close holds the write side while closing the channel.
	mu     sync.RWMutex
	closed bool
}

// NewAsyncRecorder creates a recorder draining into sink. Call Start before
// recording and Close on shutdown to flush remaining entries.
func NewAsyncRecorder(sink Sink, lg *zap.Logger) *AsyncRecorder {
	return &AsyncRecorder{
		sink:  sink,
		lg:    lg,
		queue: make(chan Entry, defaultBuffer),
		done:  make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (r *AsyncRecorder) Start() {
	go r.drain()
}

// Record enqueues an entry. It never blocks: when the buffer is full or the
// recorder is already closed the entry is dropped.
func (r *AsyncRecorder) Record(_ context.Context, e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.lg.Warn("audit recorder closed, entry dropped",
			zap.String("action", e.Action),
			zap.String("actor", e.ActorID.String()))
		return
	}

	select {
	case r.queue <- e:
	default:
		r.lg.Warn("audit queue full, entry dropped",
			zap.String("action", e.Action),
			zap.String("actor", e.ActorID.String()))
	}
}

// Close stops accepting entries and flushes the queue.
func (r *AsyncRecorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()

		<-r.done
	})
}

// QueueDepth reports the number of entries waiting to be flushed.
func (r *AsyncRecorder) QueueDepth() int {
	return len(r.queue)
}

func (r *AsyncRecorder) drain() {
	defer close(r.done)

	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := r.sink.Insert(ctx, e); err != nil {
			r.lg.Warn("audit insert failed",
				zap.String("action", e.Action),
				zap.Error(err))
		}
		cancel()
	}
}

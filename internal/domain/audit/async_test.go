package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memSink struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (s *memSink) Insert(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memSink) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func TestAsyncRecorder_FlushesOnClose(t *testing.T) {
	sink := &memSink{}
	rec := NewAsyncRecorder(sink, zaptest.NewLogger(t))
	rec.Start()

	actor := uuid.New()
	for i := range 10 {
		rec.Record(context.Background(), Entry{
			ActorID: actor,
			Action:  "order.create",
			Detail:  time.Duration(i).String(),
		})
	}
	rec.Close()

	entries := sink.all()
	require.Len(t, entries, 10)
	for _, e := range entries {
		assert.Equal(t, actor, e.ActorID)
		assert.False(t, e.CreatedAt.IsZero(), "missing timestamps are filled in")
	}
}

func TestAsyncRecorder_SinkFailureDoesNotPropagate(t *testing.T) {
	sink := &memSink{err: errors.New("insert failed")}
	rec := NewAsyncRecorder(sink, zaptest.NewLogger(t))
	rec.Start()

	// Must not panic or block.
	rec.Record(context.Background(), Entry{ActorID: uuid.New(), Action: "order.cancel"})
	rec.Close()

	assert.Empty(t, sink.all())
}

func TestAsyncRecorder_CloseTwice(t *testing.T) {
	rec := NewAsyncRecorder(&memSink{}, zaptest.NewLogger(t))
	rec.Start()
	rec.Close()
	rec.Close()
}

func TestAsyncRecorder_RecordAfterClose(t *testing.T) {
	sink := &memSink{}
	rec := NewAsyncRecorder(sink, zaptest.NewLogger(t))
	rec.Start()
	rec.Close()

	// A late entry is dropped, never sent on the closed queue.
	rec.Record(context.Background(), Entry{ActorID: uuid.New(), Action: "order.pay"})

	assert.Empty(t, sink.all())
	assert.Zero(t, rec.QueueDepth())
}

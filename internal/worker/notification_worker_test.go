package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/notify"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []notify.Notification
	fail bool
}

func (s *recordingSink) Notify(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	if s.fail {
		return errors.New("broker down")
	}
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestNotificationWorker_DeliversAndDrains(t *testing.T) {
	sink := &recordingSink{}
	w := NewNotificationWorker(sink, 8, zap.NewNop())
	w.Start()

	for i := 0; i < 5; i++ {
		require.True(t, w.Enqueue(notify.Notification{UserID: "u1"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	assert.Equal(t, 5, sink.count())
	assert.False(t, w.Enqueue(notify.Notification{UserID: "late"}))
}

func TestNotificationWorker_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	w := NewNotificationWorker(sink, 1, zap.NewNop())

	assert.True(t, w.Enqueue(notify.Notification{UserID: "u1"}))
	assert.False(t, w.Enqueue(notify.Notification{UserID: "u2"}))
}

func TestNotificationWorker_SinkFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{fail: true}
	w := NewNotificationWorker(sink, 2, zap.NewNop())
	w.Start()
	require.True(t, w.Enqueue(notify.Notification{UserID: "u1"}))
	require.NoError(t, w.Shutdown(context.Background()))
	assert.Equal(t, 1, sink.count())
}

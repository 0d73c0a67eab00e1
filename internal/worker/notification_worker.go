package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/notify"
)

const deliveryTimeout = 5 * time.Second

// NotificationWorker delivers notifications off the request path. Enqueue
// never blocks: when the buffer is full the notification is dropped and logged.
type NotificationWorker struct {
	sink   notify.Sink
	logger *zap.Logger
	queue  chan notify.Notification

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	started bool
}

// NewNotificationWorker creates a worker with the given buffer size.
func NewNotificationWorker(sink notify.Sink, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &NotificationWorker{
		sink:   sink,
		logger: logger,
		queue:  make(chan notify.Notification, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery loop. It returns immediately.
func (w *NotificationWorker) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		for n := range w.queue {
			w.deliver(n)
		}
	}()
}

// Enqueue schedules n for delivery and reports whether it was accepted.
func (w *NotificationWorker) Enqueue(n notify.Notification) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn("notification dropped: worker stopped", zap.String("user_id", n.UserID))
		return false
	}
	select {
	case w.queue <- n:
		return true
	default:
		w.logger.Warn("notification dropped: queue full",
			zap.String("user_id", n.UserID),
			zap.String("ticket_id", n.TicketID))
		return false
	}
}

// Shutdown stops accepting notifications and waits for the queue to drain
// or ctx to expire.
func (w *NotificationWorker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	started := w.started
	w.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *NotificationWorker) deliver(n notify.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := w.sink.Notify(ctx, n); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("user_id", n.UserID),
			zap.String("ticket_id", n.TicketID),
			zap.Error(err))
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// Clock returns the current time. Services take one so tests can pin time.
type Clock func() time.Time

// SystemClock truncates to microseconds, the precision Postgres stores.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Dependencies bundles the collaborators shared by the workflow services.
type Dependencies struct {
	Tickets    repository.TicketRepository
	WorkOrders repository.WorkOrderRepository
	Resources  repository.ResourceRepository
	Directory  repository.DirectoryRepository
	Tx         repository.TxManager
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
}

// workflow holds what every mutating service needs to run a serialized,
// transactional operation and announce its outcome.
type workflow struct {
	tickets    repository.TicketRepository
	orders     repository.WorkOrderRepository
	resources  repository.ResourceRepository
	directory  repository.DirectoryRepository
	tx         repository.TxManager
	locker     lock.Locker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
}

func newWorkflow(deps Dependencies) workflow {
	w := workflow{
		tickets:    deps.Tickets,
		orders:     deps.WorkOrders,
		resources:  deps.Resources,
		directory:  deps.Directory,
		tx:         deps.Tx,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.now == nil {
		w.now = SystemClock
	}
	if w.locker == nil {
		w.locker = lock.NewLocalLocker()
	}
	return w
}

// serialize acquires keys in order, runs fn inside one transaction and, once
// committed, publishes the events fn collected. Events of a failed operation
// are discarded.
func (w workflow) serialize(ctx context.Context, fn func(ctx context.Context, out *[]events.Event) error, keys ...string) error {
	for _, key := range keys {
		release, err := w.locker.Lock(ctx, key)
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				return apperrors.NewConflict("another change is in progress, retry shortly", map[string]any{"lock": key})
			}
			return apperrors.NewInternalError(err)
		}
		defer release()
	}

	var pending []events.Event
	if err := w.tx.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx, &pending)
	}); err != nil {
		return err
	}
	for _, event := range pending {
		w.publish(ctx, event)
	}
	return nil
}

func (w workflow) publish(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = w.now()
	}
	_ = w.dispatcher.Publish(ctx, event)
}

// notFound converts repository misses into a NOT_FOUND domain error.
func notFound(err error, kind, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(kind, map[string]any{"entity_id": id})
	}
	return err
}

func generateTicketNumber(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func required(entityID, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewFieldError(entityID, field, "required")
	}
	return nil
}

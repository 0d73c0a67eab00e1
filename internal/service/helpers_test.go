package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/notify"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

var (
	requester  = domain.Principal{ID: "u-req", Name: "Rina Requester", Role: domain.RoleRequester}
	otherUser  = domain.Principal{ID: "u-other", Name: "Oka Other", Role: domain.RoleRequester}
	technician = domain.Principal{ID: "u-tech", Name: "Tomi Technician", Role: domain.RoleTechnician}
	otherTech  = domain.Principal{ID: "u-tech2", Name: "Sari Technician", Role: domain.RoleTechnician}
	admin      = domain.Principal{ID: "u-admin", Name: "Ayu Admin", Role: domain.RoleAdmin}
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingQueue struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (q *recordingQueue) Enqueue(n notify.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	return true
}

func (q *recordingQueue) forUser(id string) []notify.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []notify.Notification
	for _, n := range q.items {
		if n.UserID == id {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	store        *memory.Store
	metrics      *observability.Metrics
	queue        *recordingQueue
	tickets      *TicketService
	orders       *WorkOrderService
	availability *AvailabilityService
	ledger       *LedgerService
	resources    *ResourceService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	for _, p := range []domain.Principal{requester, otherUser, technician, otherTech, admin} {
		require.NoError(t, store.Directory().Upsert(context.Background(), p))
	}

	clock := &stepClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	metrics := observability.NewMetrics()
	deps := Dependencies{
		Tickets:    store.Tickets(),
		WorkOrders: store.WorkOrders(),
		Resources:  store.Resources(),
		Directory:  store.Directory(),
		Tx:         store,
		Locker:     lock.NewLocalLocker(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     zap.NewNop(),
		Clock:      clock.Now,
	}
	queue := &recordingQueue{}
	NewNotificationService(dispatcher, queue, zap.NewNop()).RegisterHandlers()

	return &harness{
		store:        store,
		metrics:      metrics,
		queue:        queue,
		tickets:      NewTicketService(deps, CredentialsConfig{MeetingBaseURL: "https://meet.test/", BcryptCost: 4}),
		orders:       NewWorkOrderService(deps),
		availability: NewAvailabilityService(deps),
		ledger:       NewLedgerService(deps),
		resources:    NewResourceService(deps),
	}
}

func (h *harness) repairTicket(t *testing.T, assetCode string) *domain.RepairTicket {
	t.Helper()
	ticket, err := h.tickets.CreateRepairTicket(context.Background(), requester, RepairTicketInput{
		Title:    "Laptop does not boot",
		Severity: domain.SeverityHigh,
		Asset:    domain.AssetRef{Code: assetCode, InventoryNumber: "INV-" + assetCode, Location: "Room 2"},
	})
	require.NoError(t, err)
	return ticket
}

func (h *harness) transition(t *testing.T, actor domain.Principal, ticketID string, action domain.Action, payload TransitionPayload) domain.Ticket {
	t.Helper()
	result, err := h.tickets.Transition(context.Background(), actor, ticketID, action, payload)
	require.NoError(t, err, "action %s", action)
	return result.Ticket
}

// inProgress returns a repair ticket assigned to technician and started.
func (h *harness) inProgress(t *testing.T, assetCode string) *domain.RepairTicket {
	t.Helper()
	ticket := h.repairTicket(t, assetCode)
	h.transition(t, admin, ticket.ID, domain.ActionAssign, TransitionPayload{AssigneeID: technician.ID})
	updated := h.transition(t, technician, ticket.ID, domain.ActionStartWork, TransitionPayload{})
	repair, _ := domain.AsRepair(updated)
	return repair
}

func (h *harness) diagnose(t *testing.T, ticketID string, classification domain.RepairClassification) {
	t.Helper()
	h.transition(t, technician, ticketID, domain.ActionDiagnose, TransitionPayload{Diagnosis: &DiagnosisInput{
		ProblemCategory:     "hardware",
		Description:         "failing component",
		Classification:      classification,
		RepairDescription:   "reseated the module",
		UnrepairableReason:  "board is burnt",
		AlternativeSolution: "replace the unit",
	}})
}

func (h *harness) resource(t *testing.T, capacity int) *domain.Resource {
	t.Helper()
	resource, err := h.resources.Create(context.Background(), admin, ResourceInput{Category: "room", Name: "Meeting Room A", Capacity: capacity})
	require.NoError(t, err)
	return resource
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

func errorCode(err error) string {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

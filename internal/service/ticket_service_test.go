package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

func TestRepairFlow_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket := h.repairTicket(t, "LAP-001")
	assert.Equal(t, domain.RepairStatusSubmitted, ticket.Status)
	assert.Regexp(t, `^REP-[0-9A-F]{8}$`, ticket.Number)

	h.transition(t, admin, ticket.ID, domain.ActionAssign, TransitionPayload{AssigneeID: technician.ID})
	h.transition(t, technician, ticket.ID, domain.ActionStartWork, TransitionPayload{})
	h.diagnose(t, ticket.ID, domain.ClassificationNeedSparepart)

	created, err := h.orders.Create(ctx, technician, ticket.ID, WorkOrderInput{
		Type:    domain.WorkOrderTypeSparepart,
		Payload: domain.WorkOrderPayload{Spareparts: []domain.SparepartItem{{Name: "SSD 512GB", Quantity: 1, Unit: "pcs"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RepairStatusOnHold, created.Ticket.Status, "first work order puts the ticket on hold")

	_, err = h.orders.Transition(ctx, technician, created.WorkOrder.ID, WorkOrderTransitionInput{Status: domain.WorkOrderStatusInProcurement})
	require.NoError(t, err)

	_, err = h.tickets.Transition(ctx, technician, ticket.ID, domain.ActionResumeWork, TransitionPayload{})
	assert.Equal(t, apperrors.CodePreconditionFailed, errorCode(err), "open work order blocks resume")

	_, err = h.orders.Transition(ctx, technician, created.WorkOrder.ID, WorkOrderTransitionInput{
		Status:          domain.WorkOrderStatusCompleted,
		CompletionNotes: "installed",
	})
	require.NoError(t, err)

	_, err = h.tickets.Transition(ctx, technician, ticket.ID, domain.ActionResumeWork, TransitionPayload{})
	assert.Equal(t, apperrors.CodePreconditionFailed, errorCode(err), "ready flag not set yet")

	h.transition(t, technician, ticket.ID, domain.ActionMarkWorkOrdersReady, TransitionPayload{})
	h.transition(t, technician, ticket.ID, domain.ActionResumeWork, TransitionPayload{})
	h.transition(t, technician, ticket.ID, domain.ActionClose, TransitionPayload{})
	final := h.transition(t, requester, ticket.ID, domain.ActionConfirmClose, TransitionPayload{})

	repair, ok := domain.AsRepair(final)
	require.True(t, ok)
	assert.Equal(t, domain.RepairStatusClosed, repair.Status)
	require.NotNil(t, repair.ClosedAt)

	actions := make([]string, 0, len(repair.Timeline))
	for _, entry := range repair.Timeline {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{
		"create", "assign", "startWork", "diagnose", "requestProcurement",
		"markWorkOrdersReady", "resumeWork", "close", "confirmClose",
	}, actions)

	assert.NotEmpty(t, h.queue.forUser(technician.ID), "assignee hears about assignment")
	assert.NotEmpty(t, h.queue.forUser(requester.ID), "requester hears about waiting_for_submitter and closure")
}

func TestTransition_ErrorPrecedence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.repairTicket(t, "PRN-7")

	_, err := h.tickets.Transition(ctx, requester, ticket.ID, domain.ActionConfirmClose, TransitionPayload{})
	assert.Equal(t, apperrors.CodeInvalidTransition, errorCode(err), "table is checked before roles")

	_, err = h.tickets.Transition(ctx, requester, ticket.ID, domain.ActionAssign, TransitionPayload{AssigneeID: technician.ID})
	assert.Equal(t, apperrors.CodeForbidden, errorCode(err))

	_, err = h.tickets.Transition(ctx, admin, ticket.ID, domain.ActionAssign, TransitionPayload{})
	assert.Equal(t, apperrors.CodeValidation, errorCode(err))

	_, err = h.tickets.Transition(ctx, admin, ticket.ID, domain.ActionAssign, TransitionPayload{AssigneeID: requester.ID})
	assert.Equal(t, apperrors.CodePreconditionFailed, errorCode(err), "assignee must be a technician")

	_, err = h.tickets.Transition(ctx, admin, ticket.ID, domain.ActionAssign, TransitionPayload{AssigneeID: "ghost"})
	assert.Equal(t, apperrors.CodePreconditionFailed, errorCode(err))

	_, err = h.tickets.Transition(ctx, admin, "missing", domain.ActionAssign, TransitionPayload{})
	assert.Equal(t, apperrors.CodeNotFound, errorCode(err))

	snapshot := h.metrics.Snapshot()
	assert.NotEmpty(t, snapshot.Transitions)
}

func TestTransition_OnlyAssignedTechnician(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.repairTicket(t, "MON-3")
	h.transition(t, admin, ticket.ID, domain.ActionAssign, TransitionPayload{AssigneeID: technician.ID})

	_, err := h.tickets.Transition(ctx, otherTech, ticket.ID, domain.ActionStartWork, TransitionPayload{})
	assert.Equal(t, apperrors.CodeForbidden, errorCode(err))

	h.transition(t, admin, ticket.ID, domain.ActionStartWork, TransitionPayload{})
}

func TestDiagnose_ValidatesAndLocksOnceWorkOrdersExist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.inProgress(t, "PC-9")

	_, err := h.tickets.Transition(ctx, technician, ticket.ID, domain.ActionDiagnose, TransitionPayload{Diagnosis: &DiagnosisInput{
		ProblemCategory: "hardware",
		Description:     "dead",
		Classification:  domain.ClassificationUnrepairable,
	}})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, errorCode(err))
	assert.Equal(t, "diagnosis.unrepairable_reason", apperrors.ToDomainError(err).Details["field"])

	h.diagnose(t, ticket.ID, domain.ClassificationNeedVendor)
	h.diagnose(t, ticket.ID, domain.ClassificationNeedVendor)

	_, err = h.orders.Create(ctx, technician, ticket.ID, WorkOrderInput{
		Type:    domain.WorkOrderTypeVendor,
		Payload: domain.WorkOrderPayload{Vendor: &domain.VendorDetail{VendorName: "Acme Repairs"}},
	})
	require.NoError(t, err)

	_, err = h.orders.Transition(ctx, technician, firstOrderID(t, h, ticket.ID), WorkOrderTransitionInput{Status: domain.WorkOrderStatusInProcurement})
	require.NoError(t, err)
}

func TestCloseRequiresResolvedOrdersUnlessDirectRepair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	direct := h.inProgress(t, "KB-1")
	_, err := h.tickets.Transition(ctx, technician, direct.ID, domain.ActionClose, TransitionPayload{})
	assert.Equal(t, apperrors.CodePreconditionFailed, errorCode(err), "close requires a diagnosis")
	h.diagnose(t, direct.ID, domain.ClassificationDirectRepair)
	h.transition(t, technician, direct.ID, domain.ActionClose, TransitionPayload{})

	reopened := h.transition(t, requester, direct.ID, domain.ActionReopen, TransitionPayload{Reason: "still flickers"})
	assert.Equal(t, string(domain.RepairStatusInProgress), reopened.CurrentStatus())
	assert.NotEmpty(t, h.queue.forUser(technician.ID))
}

func TestRejectRequiresReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.repairTicket(t, "TAB-4")

	_, err := h.tickets.Transition(ctx, admin, ticket.ID, domain.ActionReject, TransitionPayload{})
	assert.Equal(t, apperrors.CodeValidation, errorCode(err))

	rejected := h.transition(t, admin, ticket.ID, domain.ActionReject, TransitionPayload{Reason: "duplicate"})
	repair, _ := domain.AsRepair(rejected)
	assert.Equal(t, "duplicate", repair.RejectionReason)

	_, err = h.tickets.Transition(ctx, admin, ticket.ID, domain.ActionAssign, TransitionPayload{AssigneeID: technician.ID})
	assert.Equal(t, apperrors.CodeInvalidTransition, errorCode(err), "rejected is terminal")
}

func TestConcurrentTransitionsAreSerialized(t *testing.T) {
	h := newHarness(t)
	ticket := h.repairTicket(t, "SRV-1")
	h.transition(t, admin, ticket.ID, domain.ActionAssign, TransitionPayload{AssigneeID: technician.ID})

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		codes     []string
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.tickets.Transition(context.Background(), technician, ticket.ID, domain.ActionStartWork, TransitionPayload{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			codes = append(codes, errorCode(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	for _, code := range codes {
		assert.Equal(t, apperrors.CodeInvalidTransition, code)
	}

	view, err := h.tickets.Get(context.Background(), admin, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, view.Ticket.Base().Timeline, 3)
}

func TestGetAndListRespectRequesterScope(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.repairTicket(t, "CAM-1")

	_, err := h.tickets.Get(ctx, otherUser, ticket.ID)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(err))

	view, err := h.tickets.Get(ctx, requester, ticket.ID)
	require.NoError(t, err)
	assert.False(t, view.Actionability[domain.ActionAssign].Enabled, "requester cannot assign")

	adminView, err := h.tickets.Get(ctx, admin, ticket.ID)
	require.NoError(t, err)
	assert.True(t, adminView.Actionability[domain.ActionAssign].Enabled)

	mine, err := h.tickets.List(ctx, otherUser, TicketListFilter{RequesterID: &requester.ID})
	require.NoError(t, err)
	assert.Empty(t, mine, "requester filter is forced to the caller")

	all, err := h.tickets.List(ctx, admin, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBookingScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.resource(t, 10)

	book := func(start, end int, override bool) (*BookingOutcome, error) {
		return h.tickets.CreateBookingTicket(ctx, requester, BookingTicketInput{
			Title:        "Standup",
			ResourceID:   room.ID,
			Start:        at(start/100, start%100),
			End:          at(end/100, end%100),
			Participants: 4,
			Override:     override,
		})
	}

	b1, err := book(1000, 1100, false)
	require.NoError(t, err)
	require.NotNil(t, b1.Ticket)
	assert.Nil(t, b1.Warning)

	approved, err := h.tickets.Transition(ctx, admin, b1.Ticket.ID, domain.ActionApprove, TransitionPayload{})
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, approved.HostKey)
	booking, _ := domain.AsBooking(approved.Ticket)
	require.NotNil(t, booking.Credentials)
	assert.Contains(t, booking.Credentials.MeetingLink, "https://meet.test/")
	assert.NoError(t, auth.CompareSecret(booking.Credentials.HostKeyHash, approved.HostKey))

	_, err = book(1030, 1130, false)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeScheduleConflict, errorCode(err))
	assert.Equal(t, b1.Ticket.Number, apperrors.ToDomainError(err).Details["ticket_number"])

	b3, err := book(1100, 1200, false)
	require.NoError(t, err)
	require.NotNil(t, b3.Ticket, "adjacent intervals do not overlap")

	soft, err := book(1130, 1230, false)
	require.NoError(t, err)
	assert.Nil(t, soft.Ticket)
	require.NotNil(t, soft.Warning)
	assert.Equal(t, domain.ConflictSoft, soft.Warning.Kind)
	assert.Equal(t, b3.Ticket.Number, soft.Warning.Event.TicketNumber)

	overridden, err := book(1130, 1230, true)
	require.NoError(t, err)
	require.NotNil(t, overridden.Ticket)
	require.NotNil(t, overridden.Warning)
	assert.Equal(t, "true", overridden.Ticket.Timeline[0].Details["override"])

	actions, err := h.tickets.Actionability(ctx, admin, overridden.Ticket.ID)
	require.NoError(t, err)
	assert.True(t, actions[domain.ActionApprove].Enabled)

	h.transition(t, admin, b3.Ticket.ID, domain.ActionApprove, TransitionPayload{})
	actions, err = h.tickets.Actionability(ctx, admin, overridden.Ticket.ID)
	require.NoError(t, err)
	assert.False(t, actions[domain.ActionApprove].Enabled)
	assert.Equal(t, "overlaps approved booking "+b3.Ticket.Number, actions[domain.ActionApprove].Reason)
	assert.True(t, actions[domain.ActionCancel].Enabled)

	_, err = h.tickets.Transition(ctx, admin, overridden.Ticket.ID, domain.ActionApprove, TransitionPayload{})
	assert.Equal(t, apperrors.CodeScheduleConflict, errorCode(err), "approval re-checks approved bookings")

	events, err := h.availability.ListEvents(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestConcurrentBookingCreation(t *testing.T) {
	h := newHarness(t)
	room := h.resource(t, 10)

	const attempts = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []string
		warned  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := h.tickets.CreateBookingTicket(context.Background(), requester, BookingTicketInput{
				Title: "Planning", ResourceID: room.ID, Start: at(9, 0), End: at(10, 0), Participants: 3,
			})
			mu.Lock()
			defer mu.Unlock()
			if !assert.NoError(t, err) {
				return
			}
			if outcome.Ticket != nil {
				created = append(created, outcome.Ticket.Number)
				return
			}
			if assert.NotNil(t, outcome.Warning) {
				assert.Equal(t, domain.ConflictSoft, outcome.Warning.Kind)
				warned++
			}
		}()
	}
	wg.Wait()

	require.Len(t, created, 1, "the conflict check is repeated under the resource lock")
	assert.Equal(t, attempts-1, warned)

	events, err := h.availability.ListEvents(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, created[0], events[0].TicketNumber)
}

func TestConcurrentApprovalsOfOverlappingBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.resource(t, 10)

	var pending []string
	for i := 0; i < 4; i++ {
		outcome, err := h.tickets.CreateBookingTicket(ctx, requester, BookingTicketInput{
			Title: "Workshop", ResourceID: room.ID, Start: at(13, 0), End: at(14, 0), Participants: 2, Override: true,
		})
		require.NoError(t, err)
		require.NotNil(t, outcome.Ticket)
		pending = append(pending, outcome.Ticket.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		codes    []string
	)
	for _, id := range pending {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.tickets.Transition(context.Background(), admin, id, domain.ActionApprove, TransitionPayload{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				approved++
				return
			}
			codes = append(codes, errorCode(err))
		}(id)
	}
	// A create racing the approvals sees either the pending bookings or the
	// approved one, but is never stored without an override.
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcome, err := h.tickets.CreateBookingTicket(context.Background(), requester, BookingTicketInput{
			Title: "Late request", ResourceID: room.ID, Start: at(13, 30), End: at(14, 30), Participants: 2,
		})
		if err != nil {
			assert.Equal(t, apperrors.CodeScheduleConflict, errorCode(err))
			return
		}
		assert.Nil(t, outcome.Ticket)
		if assert.NotNil(t, outcome.Warning) {
			assert.Equal(t, domain.ConflictSoft, outcome.Warning.Kind)
		}
	}()
	wg.Wait()

	assert.Equal(t, 1, approved)
	assert.Equal(t, []string{
		apperrors.CodeScheduleConflict, apperrors.CodeScheduleConflict, apperrors.CodeScheduleConflict,
	}, codes)

	conflict, err := h.availability.CheckConflict(ctx, room.ID, domain.Interval{Start: at(13, 30), End: at(14, 30)}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ConflictHard, conflict.Kind)
	_, err = h.tickets.CreateBookingTicket(ctx, requester, BookingTicketInput{
		Title: "After approval", ResourceID: room.ID, Start: at(13, 30), End: at(14, 30), Participants: 2, Override: true,
	})
	assert.Equal(t, apperrors.CodeScheduleConflict, errorCode(err), "override never bypasses an approved booking")
}

func TestBookingValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.resource(t, 2)

	input := BookingTicketInput{Title: "Review", ResourceID: room.ID, Start: at(9, 0), End: at(9, 0), Participants: 1}
	_, err := h.tickets.CreateBookingTicket(ctx, requester, input)
	assert.Equal(t, apperrors.CodeValidation, errorCode(err), "empty interval")

	input.End = at(10, 0)
	input.Participants = 3
	_, err = h.tickets.CreateBookingTicket(ctx, requester, input)
	assert.Equal(t, apperrors.CodePreconditionFailed, errorCode(err), "over capacity")

	inactive := false
	_, err = h.resources.Update(ctx, admin, room.ID, ResourceUpdate{Active: &inactive})
	require.NoError(t, err)
	input.Participants = 1
	_, err = h.tickets.CreateBookingTicket(ctx, requester, input)
	assert.Equal(t, apperrors.CodePreconditionFailed, errorCode(err), "inactive resource")

	input.ResourceID = "missing"
	_, err = h.tickets.CreateBookingTicket(ctx, requester, input)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(err))
}

func TestBookingCancelAndRejectGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	room := h.resource(t, 5)
	outcome, err := h.tickets.CreateBookingTicket(ctx, requester, BookingTicketInput{
		Title: "Demo", ResourceID: room.ID, Start: at(14, 0), End: at(15, 0), Participants: 2,
	})
	require.NoError(t, err)
	id := outcome.Ticket.ID

	_, err = h.tickets.Transition(ctx, requester, id, domain.ActionApprove, TransitionPayload{})
	assert.Equal(t, apperrors.CodeForbidden, errorCode(err))
	_, err = h.tickets.Transition(ctx, otherUser, id, domain.ActionCancel, TransitionPayload{})
	assert.Equal(t, apperrors.CodeForbidden, errorCode(err))

	cancelled := h.transition(t, requester, id, domain.ActionCancel, TransitionPayload{Reason: "moved online"})
	assert.Equal(t, string(domain.BookingStatusCancelled), cancelled.CurrentStatus())

	again, err := h.tickets.CreateBookingTicket(ctx, requester, BookingTicketInput{
		Title: "Demo again", ResourceID: room.ID, Start: at(14, 0), End: at(15, 0), Participants: 2,
	})
	require.NoError(t, err)
	assert.Nil(t, again.Warning, "cancelled bookings never conflict")
}

func firstOrderID(t *testing.T, h *harness, ticketID string) string {
	t.Helper()
	orders, err := h.orders.ListByTicket(context.Background(), admin, ticketID)
	require.NoError(t, err)
	require.NotEmpty(t, orders)
	return orders[0].ID
}

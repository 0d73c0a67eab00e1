package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextRepairStatus(t *testing.T) {
	cases := []struct {
		from   RepairStatus
		action Action
		to     RepairStatus
		ok     bool
	}{
		{RepairStatusSubmitted, ActionAssign, RepairStatusAssigned, true},
		{RepairStatusAssigned, ActionStartWork, RepairStatusInProgress, true},
		{RepairStatusInProgress, ActionDiagnose, RepairStatusInProgress, true},
		{RepairStatusInProgress, ActionRequestProcurement, RepairStatusOnHold, true},
		{RepairStatusOnHold, ActionMarkWorkOrdersReady, RepairStatusOnHold, true},
		{RepairStatusOnHold, ActionResumeWork, RepairStatusInProgress, true},
		{RepairStatusInProgress, ActionClose, RepairStatusWaitingForSubmitter, true},
		{RepairStatusWaitingForSubmitter, ActionConfirmClose, RepairStatusClosed, true},
		{RepairStatusWaitingForSubmitter, ActionReopen, RepairStatusInProgress, true},
		{RepairStatusAssigned, ActionReject, RepairStatusRejected, true},
		{RepairStatusOnHold, ActionReject, "", false},
		{RepairStatusSubmitted, ActionStartWork, "", false},
		{RepairStatusClosed, ActionReopen, "", false},
		{RepairStatusInProgress, ActionApprove, "", false},
	}
	for _, tc := range cases {
		to, ok := NextRepairStatus(tc.from, tc.action)
		assert.Equal(t, tc.ok, ok, "%s --%s-->", tc.from, tc.action)
		assert.Equal(t, tc.to, to, "%s --%s-->", tc.from, tc.action)
	}
}

func TestNextBookingStatus(t *testing.T) {
	to, ok := NextBookingStatus(BookingStatusPendingReview, ActionApprove)
	assert.True(t, ok)
	assert.Equal(t, BookingStatusApproved, to)

	to, ok = NextBookingStatus(BookingStatusApproved, ActionCancel)
	assert.True(t, ok)
	assert.Equal(t, BookingStatusCancelled, to)

	_, ok = NextBookingStatus(BookingStatusApproved, ActionReject)
	assert.False(t, ok)
	_, ok = NextBookingStatus(BookingStatusCancelled, ActionCancel)
	assert.False(t, ok)
}

func TestRepairPrecondition(t *testing.T) {
	ticket := &RepairTicket{Status: RepairStatusInProgress}
	assert.Equal(t, "diagnosis required", RepairPrecondition(ticket, ActionRequestProcurement, nil))
	assert.Equal(t, "diagnosis required", RepairPrecondition(ticket, ActionClose, nil))

	ticket.Diagnosis = &Diagnosis{Classification: ClassificationDirectRepair}
	assert.NotEmpty(t, RepairPrecondition(ticket, ActionRequestProcurement, nil))
	assert.Empty(t, RepairPrecondition(ticket, ActionClose, nil))

	ticket.Diagnosis.Classification = ClassificationNeedVendor
	open := []WorkOrder{{Status: WorkOrderStatusInProcurement}}
	done := []WorkOrder{{Status: WorkOrderStatusCompleted}, {Status: WorkOrderStatusUnsuccessful}}
	assert.NotEmpty(t, RepairPrecondition(ticket, ActionClose, open))
	assert.Empty(t, RepairPrecondition(ticket, ActionClose, done))
	assert.NotEmpty(t, RepairPrecondition(ticket, ActionDiagnose, open), "diagnosis locked once orders exist")

	ticket.Status = RepairStatusOnHold
	assert.NotEmpty(t, RepairPrecondition(ticket, ActionMarkWorkOrdersReady, open))
	assert.Empty(t, RepairPrecondition(ticket, ActionMarkWorkOrdersReady, done))
	assert.Equal(t, "work orders have not been confirmed ready", RepairPrecondition(ticket, ActionResumeWork, done))
	ticket.WorkOrdersReady = true
	assert.Empty(t, RepairPrecondition(ticket, ActionResumeWork, done))
	assert.NotEmpty(t, RepairPrecondition(ticket, ActionResumeWork, open), "flag alone is not enough")
}

func TestWorkOrderCreationBlocker(t *testing.T) {
	ticket := &RepairTicket{Status: RepairStatusAssigned}
	assert.NotEmpty(t, WorkOrderCreationBlocker(ticket, WorkOrderTypeVendor))

	ticket.Status = RepairStatusInProgress
	assert.Equal(t, "diagnosis required", WorkOrderCreationBlocker(ticket, WorkOrderTypeVendor))

	ticket.Diagnosis = &Diagnosis{Classification: ClassificationUnrepairable}
	assert.NotEmpty(t, WorkOrderCreationBlocker(ticket, WorkOrderTypeVendor))

	ticket.Diagnosis.Classification = ClassificationNeedVendor
	assert.Empty(t, WorkOrderCreationBlocker(ticket, WorkOrderTypeVendor))
	assert.Empty(t, WorkOrderCreationBlocker(ticket, ""))
	assert.Equal(t, "diagnosis only permits vendor work orders", WorkOrderCreationBlocker(ticket, WorkOrderTypeLicense))
}

func TestWorkOrderLifecycle(t *testing.T) {
	assert.True(t, CanTransitionWorkOrder(WorkOrderStatusRequested, WorkOrderStatusInProcurement))
	assert.True(t, CanTransitionWorkOrder(WorkOrderStatusInProcurement, WorkOrderStatusUnsuccessful))
	assert.False(t, CanTransitionWorkOrder(WorkOrderStatusRequested, WorkOrderStatusCompleted))
	assert.False(t, CanTransitionWorkOrder(WorkOrderStatusCompleted, WorkOrderStatusInProcurement))

	assert.True(t, AggregateReadiness(nil), "empty set is ready")
	assert.False(t, AggregateReadiness([]WorkOrder{{Status: WorkOrderStatusRequested}}))
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

func TestBuildLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket := h.inProgress(t, "LAB-PC-01")
	h.diagnose(t, ticket.ID, domain.ClassificationNeedSparepart)
	created, err := h.orders.Create(ctx, technician, ticket.ID, WorkOrderInput{
		Type: domain.WorkOrderTypeSparepart,
		Payload: domain.WorkOrderPayload{Spareparts: []domain.SparepartItem{
			{Name: "RAM 8GB", Quantity: 2, Unit: "pcs"},
			{Name: "Thermal paste", Quantity: 1, Unit: "tube"},
		}},
	})
	require.NoError(t, err)
	for _, status := range []domain.WorkOrderStatus{domain.WorkOrderStatusInProcurement, domain.WorkOrderStatusCompleted} {
		_, err = h.orders.Transition(ctx, technician, created.WorkOrder.ID, WorkOrderTransitionInput{Status: status})
		require.NoError(t, err)
	}
	pending, err := h.orders.Create(ctx, technician, ticket.ID, sparepartInput())
	require.NoError(t, err)

	h.repairTicket(t, "OTHER-ASSET")

	ledger, err := h.ledger.BuildLedger(ctx, " lab-pc-01 ")
	require.NoError(t, err)
	assert.Equal(t, "LAB-PC-01", ledger.AssetCode, "stored asset code wins over lookup casing")
	require.Len(t, ledger.Tickets, 1)
	assert.Equal(t, ticket.Number, ledger.Tickets[0].TicketNumber)
	require.Len(t, ledger.Spareparts, 2)
	assert.Equal(t, technician.Name, ledger.Spareparts[0].CompletedBy)
	assert.Equal(t, 1, ledger.PendingCount)
	require.Len(t, ledger.PendingWorkOrders, 1)
	assert.Equal(t, pending.WorkOrder.ID, ledger.PendingWorkOrders[0].WorkOrderID)

	again, err := h.ledger.BuildLedger(ctx, "LAB-PC-01")
	require.NoError(t, err)
	assert.Equal(t, ledger, again, "lookup casing and whitespace do not change the ledger")

	empty, err := h.ledger.BuildLedger(ctx, "NOPE")
	require.NoError(t, err)
	assert.Empty(t, empty.Tickets)
	assert.Equal(t, "NOPE", empty.AssetCode)
	assert.NotNil(t, empty.Spareparts)

	_, err = h.ledger.BuildLedger(ctx, "  ")
	assert.Equal(t, apperrors.CodeValidation, errorCode(err))
}

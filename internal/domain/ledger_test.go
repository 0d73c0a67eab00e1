package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLedger(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 2, d, 9, 0, 0, 0, time.UTC) }
	tech := Principal{ID: "tech", Name: "Tomi", Role: RoleTechnician}

	older := &RepairTicket{
		TicketBase: TicketBase{ID: "t1", Number: "REP-1", CreatedAt: day(1)},
		Status:     RepairStatusClosed,
		Asset:      AssetRef{Code: "PC-1", InventoryNumber: "INV-1"},
	}
	newer := &RepairTicket{
		TicketBase: TicketBase{ID: "t2", Number: "REP-2", CreatedAt: day(5)},
		Status:     RepairStatusRejected,
		Asset:      AssetRef{Code: "pc-1"},
	}
	foreign := &RepairTicket{TicketBase: TicketBase{ID: "t3"}, Asset: AssetRef{Code: "PC-2"}}

	completed := WorkOrder{
		ID: "w1", TicketID: "t1", Type: WorkOrderTypeVendor, Status: WorkOrderStatusCompleted, CreatedAt: day(2),
		Payload: WorkOrderPayload{Vendor: &VendorDetail{VendorName: "Acme", CompletionNotes: "board swapped"}},
		AssetConditionChange: &AssetConditionChange{Condition: "good", ChangedBy: "Tomi", ChangedAt: day(3)},
		Timeline: []TimelineEntry{
			NewTimelineEntry(day(2), tech, "create", "", "requested", nil),
			NewTimelineEntry(day(3), tech, "transition", "in_procurement", "completed", nil),
		},
	}
	failed := WorkOrder{ID: "w2", TicketID: "t1", Type: WorkOrderTypeVendor, Status: WorkOrderStatusUnsuccessful,
		FailureReason: "vendor closed", CreatedAt: day(2)}
	open := WorkOrder{ID: "w3", TicketID: "t2", Type: WorkOrderTypeLicense, Status: WorkOrderStatusRequested, CreatedAt: day(6)}

	orders := map[string][]WorkOrder{"t1": {failed, completed}, "t2": {open}}
	ledger := BuildLedger("PC-1", []*RepairTicket{newer, foreign, older}, orders)

	require.Len(t, ledger.Tickets, 2)
	assert.Equal(t, "REP-1", ledger.Tickets[0].TicketNumber, "oldest ticket first")
	assert.Equal(t, "INV-1", ledger.InventoryNumber)
	assert.Equal(t, 1, ledger.TotalMaintenance, "rejected tickets are listed but not counted")

	require.Len(t, ledger.Vendors, 1)
	assert.Equal(t, "board swapped", ledger.Vendors[0].CompletionNote)
	assert.Equal(t, "Tomi", ledger.Vendors[0].CompletedBy)
	assert.Equal(t, day(3), ledger.Vendors[0].CompletedAt)

	assert.Equal(t, 1, ledger.UnsuccessfulCount)
	assert.Equal(t, "vendor closed", ledger.UnsuccessfulWorkOrders[0].FailureReason)
	assert.Equal(t, 1, ledger.PendingCount)
	require.Len(t, ledger.ConditionChanges, 1)
	assert.Empty(t, ledger.Licenses)

	assert.Equal(t, ledger, BuildLedger("PC-1", []*RepairTicket{older, foreign, newer}, orders), "input order does not matter")
	assert.Len(t, orders["t1"], 2)
	assert.Equal(t, "w2", orders["t1"][0].ID, "inputs are not reordered")
}

func TestBuildLedger_AssetCodeFromStoredTicket(t *testing.T) {
	stored := &RepairTicket{
		TicketBase: TicketBase{ID: "t1", Number: "REP-1"},
		Asset:      AssetRef{Code: "LAB-PC-01"},
	}
	tickets := []*RepairTicket{stored}

	lower := BuildLedger(" lab-pc-01 ", tickets, nil)
	assert.Equal(t, "LAB-PC-01", lower.AssetCode)
	assert.Equal(t, lower, BuildLedger("LAB-PC-01", tickets, nil))

	assert.Equal(t, "unknown", BuildLedger(" unknown ", tickets, nil).AssetCode)
}

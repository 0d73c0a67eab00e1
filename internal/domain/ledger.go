package domain

import (
	"sort"
	"strings"
	"time"
)

// MaintenanceLedger (kartu kendali) is the derived maintenance record of one asset.
// It is computed on read and never persisted.
type MaintenanceLedger struct {
	AssetCode              string                  `json:"asset_code"`
	InventoryNumber        string                  `json:"inventory_number,omitempty"`
	TotalMaintenance       int                     `json:"total_maintenance"`
	Tickets                []LedgerTicket          `json:"tickets"`
	Spareparts             []LedgerSparepart       `json:"spareparts"`
	Vendors                []LedgerVendor          `json:"vendors"`
	Licenses               []LedgerLicense         `json:"licenses"`
	PendingWorkOrders      []LedgerWorkOrder       `json:"pending_work_orders"`
	UnsuccessfulWorkOrders []LedgerWorkOrder       `json:"unsuccessful_work_orders"`
	PendingCount           int                     `json:"pending_count"`
	UnsuccessfulCount      int                     `json:"unsuccessful_count"`
	ConditionChanges       []LedgerConditionChange `json:"condition_changes"`
}

// LedgerTicket summarizes one related repair ticket.
type LedgerTicket struct {
	TicketID        string               `json:"ticket_id"`
	TicketNumber    string               `json:"ticket_number"`
	Title           string               `json:"title"`
	Status          RepairStatus         `json:"status"`
	Severity        Severity             `json:"severity"`
	Location        string               `json:"location"`
	RequesterName   string               `json:"requester_name"`
	TechnicianName  string               `json:"technician_name,omitempty"`
	ProblemCategory string               `json:"problem_category,omitempty"`
	Classification  RepairClassification `json:"classification,omitempty"`
	WorkOrderCount  int                  `json:"work_order_count"`
	ReportedAt      time.Time            `json:"reported_at"`
	ClosedAt        *time.Time           `json:"closed_at,omitempty"`
}

// LedgerCompletion tags a completed item with who finished it and when.
type LedgerCompletion struct {
	TicketNumber   string    `json:"ticket_number"`
	WorkOrderID    string    `json:"work_order_id"`
	CompletedAt    time.Time `json:"completed_at"`
	CompletedBy    string    `json:"completed_by"`
	CompletedByID  string    `json:"completed_by_id"`
	CompletionNote string    `json:"completion_note,omitempty"`
}

// LedgerSparepart is one installed part.
type LedgerSparepart struct {
	LedgerCompletion
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// LedgerVendor is one completed vendor engagement.
type LedgerVendor struct {
	LedgerCompletion
	VendorName  string `json:"vendor_name"`
	Contact     string `json:"contact"`
	Description string `json:"description"`
}

// LedgerLicense is one delivered license.
type LedgerLicense struct {
	LedgerCompletion
	LicenseName string `json:"license_name"`
	Description string `json:"description"`
}

// LedgerWorkOrder references an open or unsuccessful work order.
type LedgerWorkOrder struct {
	TicketNumber  string          `json:"ticket_number"`
	WorkOrderID   string          `json:"work_order_id"`
	Type          WorkOrderType   `json:"type"`
	Status        WorkOrderStatus `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LedgerConditionChange is a recorded asset condition override.
type LedgerConditionChange struct {
	TicketNumber string    `json:"ticket_number"`
	WorkOrderID  string    `json:"work_order_id"`
	Condition    string    `json:"condition"`
	Note         string    `json:"note,omitempty"`
	ChangedBy    string    `json:"changed_by"`
	ChangedAt    time.Time `json:"changed_at"`
}

// MatchesAsset compares asset codes ignoring case and surrounding space.
func MatchesAsset(ref AssetRef, code string) bool {
	return strings.EqualFold(strings.TrimSpace(ref.Code), strings.TrimSpace(code))
}

// BuildLedger aggregates the maintenance history of assetCode from repair
// tickets and their work orders (keyed by ticket id). Tickets for other
// assets are skipped. Inputs are not modified and output ordering depends
// only on the data, so repeated calls over the same data are identical.
func BuildLedger(assetCode string, tickets []*RepairTicket, orders map[string][]WorkOrder) MaintenanceLedger {
	ledger := MaintenanceLedger{
		AssetCode:              strings.TrimSpace(assetCode),
		Tickets:                []LedgerTicket{},
		Spareparts:             []LedgerSparepart{},
		Vendors:                []LedgerVendor{},
		Licenses:               []LedgerLicense{},
		PendingWorkOrders:      []LedgerWorkOrder{},
		UnsuccessfulWorkOrders: []LedgerWorkOrder{},
		ConditionChanges:       []LedgerConditionChange{},
	}

	related := make([]*RepairTicket, 0, len(tickets))
	for _, t := range tickets {
		if t == nil || !MatchesAsset(t.Asset, assetCode) {
			continue
		}
		related = append(related, t)
	}
	sort.SliceStable(related, func(i, j int) bool {
		if !related[i].CreatedAt.Equal(related[j].CreatedAt) {
			return related[i].CreatedAt.Before(related[j].CreatedAt)
		}
		return related[i].Number < related[j].Number
	})

	if len(related) > 0 {
		ledger.AssetCode = strings.TrimSpace(related[0].Asset.Code)
	}
	for _, t := range related {
		if ledger.InventoryNumber == "" {
			ledger.InventoryNumber = t.Asset.InventoryNumber
		}
		ticketOrders := append([]WorkOrder(nil), orders[t.ID]...)
		sort.SliceStable(ticketOrders, func(i, j int) bool {
			if !ticketOrders[i].CreatedAt.Equal(ticketOrders[j].CreatedAt) {
				return ticketOrders[i].CreatedAt.Before(ticketOrders[j].CreatedAt)
			}
			return ticketOrders[i].ID < ticketOrders[j].ID
		})

		ledger.Tickets = append(ledger.Tickets, ledgerTicket(t, len(ticketOrders)))
		if t.Status != RepairStatusRejected {
			ledger.TotalMaintenance++
		}

		for _, order := range ticketOrders {
			switch order.Status {
			case WorkOrderStatusCompleted:
				appendCompleted(&ledger, t, order)
			case WorkOrderStatusUnsuccessful:
				ledger.UnsuccessfulWorkOrders = append(ledger.UnsuccessfulWorkOrders, ledgerWorkOrder(t, order))
			default:
				ledger.PendingWorkOrders = append(ledger.PendingWorkOrders, ledgerWorkOrder(t, order))
			}
			if change := order.AssetConditionChange; change != nil {
				ledger.ConditionChanges = append(ledger.ConditionChanges, LedgerConditionChange{
					TicketNumber: t.Number,
					WorkOrderID:  order.ID,
					Condition:    change.Condition,
					Note:         change.Note,
					ChangedBy:    change.ChangedBy,
					ChangedAt:    change.ChangedAt,
				})
			}
		}
	}

	ledger.PendingCount = len(ledger.PendingWorkOrders)
	ledger.UnsuccessfulCount = len(ledger.UnsuccessfulWorkOrders)

	sort.SliceStable(ledger.Spareparts, func(i, j int) bool {
		return completionBefore(ledger.Spareparts[i].LedgerCompletion, ledger.Spareparts[j].LedgerCompletion)
	})
	sort.SliceStable(ledger.Vendors, func(i, j int) bool {
		return completionBefore(ledger.Vendors[i].LedgerCompletion, ledger.Vendors[j].LedgerCompletion)
	})
	sort.SliceStable(ledger.Licenses, func(i, j int) bool {
		return completionBefore(ledger.Licenses[i].LedgerCompletion, ledger.Licenses[j].LedgerCompletion)
	})
	return ledger
}

func ledgerTicket(t *RepairTicket, orderCount int) LedgerTicket {
	entry := LedgerTicket{
		TicketID:       t.ID,
		TicketNumber:   t.Number,
		Title:          t.Title,
		Status:         t.Status,
		Severity:       t.Severity,
		Location:       t.Asset.Location,
		RequesterName:  t.RequesterName,
		WorkOrderCount: orderCount,
		ReportedAt:     t.CreatedAt,
	}
	if t.AssigneeName != nil {
		entry.TechnicianName = *t.AssigneeName
	}
	if t.Diagnosis != nil {
		entry.ProblemCategory = t.Diagnosis.ProblemCategory
		entry.Classification = t.Diagnosis.Classification
	}
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		entry.ClosedAt = &closed
	}
	return entry
}

func ledgerWorkOrder(t *RepairTicket, order WorkOrder) LedgerWorkOrder {
	return LedgerWorkOrder{
		TicketNumber:  t.Number,
		WorkOrderID:   order.ID,
		Type:          order.Type,
		Status:        order.Status,
		FailureReason: order.FailureReason,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func appendCompleted(ledger *MaintenanceLedger, t *RepairTicket, order WorkOrder) {
	completion := LedgerCompletion{
		TicketNumber:   t.Number,
		WorkOrderID:    order.ID,
		CompletedAt:    order.UpdatedAt,
		CompletionNote: order.CompletionNotes,
	}
	if entry, ok := order.CompletionEntry(); ok {
		completion.CompletedAt = entry.At
		completion.CompletedBy = entry.ActorName
		completion.CompletedByID = entry.ActorID
	}

	switch order.Type {
	case WorkOrderTypeSparepart:
		for _, item := range order.Payload.Spareparts {
			ledger.Spareparts = append(ledger.Spareparts, LedgerSparepart{
				LedgerCompletion: completion,
				Name:             item.Name,
				Quantity:         item.Quantity,
				Unit:             item.Unit,
			})
		}
	case WorkOrderTypeVendor:
		if v := order.Payload.Vendor; v != nil {
			if v.CompletionNotes != "" {
				completion.CompletionNote = v.CompletionNotes
			}
			ledger.Vendors = append(ledger.Vendors, LedgerVendor{
				LedgerCompletion: completion,
				VendorName:       v.VendorName,
				Contact:          v.Contact,
				Description:      v.Description,
			})
		}
	case WorkOrderTypeLicense:
		if l := order.Payload.License; l != nil {
			ledger.Licenses = append(ledger.Licenses, LedgerLicense{
				LedgerCompletion: completion,
				LicenseName:      l.LicenseName,
				Description:      l.Description,
			})
		}
	}
}

func completionBefore(a, b LedgerCompletion) bool {
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.Before(b.CompletedAt)
	}
	if a.TicketNumber != b.TicketNumber {
		return a.TicketNumber < b.TicketNumber
	}
	return a.WorkOrderID < b.WorkOrderID
}

package domain

import (
	"strings"
	"time"
)

// WorkOrderType enumerates procurement kinds.
type WorkOrderType string

const (
	WorkOrderTypeSparepart WorkOrderType = "sparepart"
	WorkOrderTypeVendor    WorkOrderType = "vendor"
	WorkOrderTypeLicense   WorkOrderType = "license"
)

// Valid reports whether t is a known work order type.
func (t WorkOrderType) Valid() bool {
	switch t {
	case WorkOrderTypeSparepart, WorkOrderTypeVendor, WorkOrderTypeLicense:
		return true
	}
	return false
}

// WorkOrderStatus enumerates work order lifecycle states.
type WorkOrderStatus string

const (
	WorkOrderStatusRequested     WorkOrderStatus = "requested"
	WorkOrderStatusInProcurement WorkOrderStatus = "in_procurement"
	WorkOrderStatusCompleted     WorkOrderStatus = "completed"
	WorkOrderStatusUnsuccessful  WorkOrderStatus = "unsuccessful"
)

// Resolved reports whether the status is terminal.
func (s WorkOrderStatus) Resolved() bool {
	return s == WorkOrderStatusCompleted || s == WorkOrderStatusUnsuccessful
}

var workOrderTransitions = map[WorkOrderStatus][]WorkOrderStatus{
	WorkOrderStatusRequested:     {WorkOrderStatusInProcurement},
	WorkOrderStatusInProcurement: {WorkOrderStatusCompleted, WorkOrderStatusUnsuccessful},
	WorkOrderStatusCompleted:     {},
	WorkOrderStatusUnsuccessful:  {},
}

// CanTransitionWorkOrder reports whether next is reachable from current.
func CanTransitionWorkOrder(current, next WorkOrderStatus) bool {
	for _, candidate := range workOrderTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// SparepartItem is one requested part.
type SparepartItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// VendorDetail describes an external repair vendor engagement.
type VendorDetail struct {
	VendorName      string `json:"vendor_name"`
	Contact         string `json:"contact"`
	Description     string `json:"description"`
	CompletionNotes string `json:"completion_notes,omitempty"`
}

// LicenseDetail describes a software license purchase.
type LicenseDetail struct {
	LicenseName string `json:"license_name"`
	Description string `json:"description"`
}

// WorkOrderPayload carries exactly one type-specific payload.
type WorkOrderPayload struct {
	Spareparts []SparepartItem `json:"spareparts,omitempty"`
	Vendor     *VendorDetail   `json:"vendor,omitempty"`
	License    *LicenseDetail  `json:"license,omitempty"`
}

// Validate checks that the payload matches the work order type.
func (p WorkOrderPayload) Validate(t WorkOrderType) *FieldProblem {
	switch t {
	case WorkOrderTypeSparepart:
		if p.Vendor != nil || p.License != nil {
			return &FieldProblem{Field: "payload", Reason: "sparepart work order only accepts spareparts"}
		}
		if len(p.Spareparts) == 0 {
			return &FieldProblem{Field: "spareparts", Reason: "at least one item required"}
		}
		for _, item := range p.Spareparts {
			if strings.TrimSpace(item.Name) == "" {
				return &FieldProblem{Field: "spareparts.name", Reason: "required"}
			}
			if item.Quantity <= 0 {
				return &FieldProblem{Field: "spareparts.quantity", Reason: "must be positive"}
			}
			if strings.TrimSpace(item.Unit) == "" {
				return &FieldProblem{Field: "spareparts.unit", Reason: "required"}
			}
		}
	case WorkOrderTypeVendor:
		if len(p.Spareparts) > 0 || p.License != nil {
			return &FieldProblem{Field: "payload", Reason: "vendor work order only accepts vendor details"}
		}
		if p.Vendor == nil || strings.TrimSpace(p.Vendor.VendorName) == "" {
			return &FieldProblem{Field: "vendor.vendor_name", Reason: "required"}
		}
	case WorkOrderTypeLicense:
		if len(p.Spareparts) > 0 || p.Vendor != nil {
			return &FieldProblem{Field: "payload", Reason: "license work order only accepts license details"}
		}
		if p.License == nil || strings.TrimSpace(p.License.LicenseName) == "" {
			return &FieldProblem{Field: "license.license_name", Reason: "required"}
		}
	default:
		return &FieldProblem{Field: "type", Reason: "unknown work order type"}
	}
	return nil
}

func (p WorkOrderPayload) clone() WorkOrderPayload {
	c := p
	if p.Spareparts != nil {
		c.Spareparts = append([]SparepartItem(nil), p.Spareparts...)
	}
	if p.Vendor != nil {
		v := *p.Vendor
		c.Vendor = &v
	}
	if p.License != nil {
		l := *p.License
		c.License = &l
	}
	return c
}

// AssetConditionChange records a one-time override of the asset's condition.
type AssetConditionChange struct {
	Condition string    `json:"condition"`
	Note      string    `json:"note,omitempty"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// WorkOrder is a procurement sub-task of a repair ticket.
type WorkOrder struct {
	ID                   string                `json:"id"`
	TicketID             string                `json:"ticket_id"`
	Type                 WorkOrderType         `json:"type"`
	Status               WorkOrderStatus       `json:"status"`
	Payload              WorkOrderPayload      `json:"payload"`
	FailureReason        string                `json:"failure_reason,omitempty"`
	CompletionNotes      string                `json:"completion_notes,omitempty"`
	AssetConditionChange *AssetConditionChange `json:"asset_condition_change,omitempty"`
	CreatedBy            string                `json:"created_by"`
	Timeline             []TimelineEntry       `json:"timeline"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Clone returns a deep copy.
func (w WorkOrder) Clone() WorkOrder {
	c := w
	c.Payload = w.Payload.clone()
	if w.AssetConditionChange != nil {
		change := *w.AssetConditionChange
		c.AssetConditionChange = &change
	}
	c.Timeline = cloneTimeline(w.Timeline)
	return c
}

// Append adds a timeline entry and bumps UpdatedAt.
func (w *WorkOrder) Append(entry TimelineEntry) {
	w.Timeline = append(w.Timeline, entry)
	w.UpdatedAt = entry.At
}

// CompletionEntry returns the timeline entry that moved the order into a
// terminal status, if any.
func (w WorkOrder) CompletionEntry() (TimelineEntry, bool) {
	for i := len(w.Timeline) - 1; i >= 0; i-- {
		entry := w.Timeline[i]
		if entry.To == string(WorkOrderStatusCompleted) || entry.To == string(WorkOrderStatusUnsuccessful) {
			return entry, true
		}
	}
	return TimelineEntry{}, false
}

// AggregateReadiness is true iff every order is completed or unsuccessful.
// An empty set is ready.
func AggregateReadiness(orders []WorkOrder) bool {
	for _, order := range orders {
		if !order.Status.Resolved() {
			return false
		}
	}
	return true
}

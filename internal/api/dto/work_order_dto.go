package dto

import (
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// SparepartRequest is one requested part.
type SparepartRequest struct {
	Name     string  `json:"name" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Unit     string  `json:"unit" validate:"required"`
}

// VendorRequest describes a vendor engagement.
type VendorRequest struct {
	VendorName  string `json:"vendor_name" validate:"required"`
	Contact     string `json:"contact"`
	Description string `json:"description"`
}

// LicenseRequest describes a license purchase.
type LicenseRequest struct {
	LicenseName string `json:"license_name" validate:"required"`
	Description string `json:"description"`
}

// CreateWorkOrderRequest payload. Exactly the section matching Type is read.
type CreateWorkOrderRequest struct {
	Type       domain.WorkOrderType `json:"type" validate:"required,oneof=sparepart vendor license"`
	Spareparts []SparepartRequest   `json:"spareparts" validate:"omitempty,dive"`
	Vendor     *VendorRequest       `json:"vendor" validate:"omitempty"`
	License    *LicenseRequest      `json:"license" validate:"omitempty"`
}

// Input converts the request to the service input.
func (r CreateWorkOrderRequest) Input() service.WorkOrderInput {
	payload := domain.WorkOrderPayload{}
	for _, item := range r.Spareparts {
		payload.Spareparts = append(payload.Spareparts, domain.SparepartItem{Name: item.Name, Quantity: item.Quantity, Unit: item.Unit})
	}
	if r.Vendor != nil {
		payload.Vendor = &domain.VendorDetail{VendorName: r.Vendor.VendorName, Contact: r.Vendor.Contact, Description: r.Vendor.Description}
	}
	if r.License != nil {
		payload.License = &domain.LicenseDetail{LicenseName: r.License.LicenseName, Description: r.License.Description}
	}
	return service.WorkOrderInput{Type: r.Type, Payload: payload}
}

// WorkOrderTransitionRequest payload for POST /work-orders/:id/transitions.
type WorkOrderTransitionRequest struct {
	Status               domain.WorkOrderStatus `json:"status" validate:"required,oneof=in_procurement completed unsuccessful"`
	FailureReason        string                 `json:"failure_reason" validate:"max=2000"`
	CompletionNotes      string                 `json:"completion_notes" validate:"max=2000"`
	AssetConditionChange *struct {
		Condition string `json:"condition" validate:"required"`
		Note      string `json:"note"`
	} `json:"asset_condition_change" validate:"omitempty"`
}

// Input converts the request to the service input.
func (r WorkOrderTransitionRequest) Input() service.WorkOrderTransitionInput {
	input := service.WorkOrderTransitionInput{
		Status:          r.Status,
		FailureReason:   r.FailureReason,
		CompletionNotes: r.CompletionNotes,
	}
	if c := r.AssetConditionChange; c != nil {
		input.AssetConditionChange = &service.AssetConditionInput{Condition: c.Condition, Note: c.Note}
	}
	return input
}

// WorkOrderCreatedResponse returns the order and the ticket status it left behind.
type WorkOrderCreatedResponse struct {
	WorkOrder    domain.WorkOrder    `json:"work_order"`
	TicketStatus domain.RepairStatus `json:"ticket_status"`
}

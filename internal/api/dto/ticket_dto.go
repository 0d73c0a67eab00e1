package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// AttachmentRequest references an already uploaded file.
type AttachmentRequest struct {
	FileName string `json:"file_name" validate:"max=255"`
	URL      string `json:"url" validate:"required,url"`
	MimeType string `json:"mime_type" validate:"max=127"`
}

// AssetRequest identifies the asset of a repair request.
type AssetRequest struct {
	Code            string `json:"code" validate:"required,max=64"`
	InventoryNumber string `json:"inventory_number" validate:"max=64"`
	Location        string `json:"location" validate:"max=255"`
}

// CreateRepairTicketRequest payload.
type CreateRepairTicketRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	Severity    domain.Severity     `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Asset       AssetRequest        `json:"asset"`
	Attachments []AttachmentRequest `json:"attachments" validate:"omitempty,max=20,dive"`
}

// Input converts the request to the service input.
func (r CreateRepairTicketRequest) Input() service.RepairTicketInput {
	return service.RepairTicketInput{
		Title:       r.Title,
		Description: r.Description,
		Severity:    r.Severity,
		Asset: domain.AssetRef{
			Code:            r.Asset.Code,
			InventoryNumber: r.Asset.InventoryNumber,
			Location:        r.Asset.Location,
		},
		Attachments: attachments(r.Attachments),
	}
}

// CreateBookingTicketRequest payload. Override accepts a previously reported
// SCHEDULE_WARNING.
type CreateBookingTicketRequest struct {
	Title         string              `json:"title" validate:"required,max=200"`
	Description   string              `json:"description" validate:"max=5000"`
	ResourceID    string              `json:"resource_id" validate:"required"`
	Start         time.Time           `json:"start" validate:"required"`
	End           time.Time           `json:"end" validate:"required,gtfield=Start"`
	Participants  int                 `json:"participants" validate:"required,min=1"`
	BreakoutRooms int                 `json:"breakout_rooms" validate:"min=0"`
	CoHosts       []string            `json:"co_hosts" validate:"omitempty,max=10,dive,required"`
	Attachments   []AttachmentRequest `json:"attachments" validate:"omitempty,max=20,dive"`
	Override      bool                `json:"override"`
}

// Input converts the request to the service input.
func (r CreateBookingTicketRequest) Input() service.BookingTicketInput {
	return service.BookingTicketInput{
		Title:         r.Title,
		Description:   r.Description,
		ResourceID:    r.ResourceID,
		Start:         r.Start,
		End:           r.End,
		Participants:  r.Participants,
		BreakoutRooms: r.BreakoutRooms,
		CoHosts:       r.CoHosts,
		Attachments:   attachments(r.Attachments),
		Override:      r.Override,
	}
}

// DiagnosisRequest is the payload of the diagnose action.
type DiagnosisRequest struct {
	ProblemCategory     string                      `json:"problem_category" validate:"required"`
	Description         string                      `json:"description" validate:"required"`
	Classification      domain.RepairClassification `json:"classification" validate:"required,oneof=direct_repair need_sparepart need_vendor need_license unrepairable"`
	RepairDescription   string                      `json:"repair_description"`
	UnrepairableReason  string                      `json:"unrepairable_reason"`
	AlternativeSolution string                      `json:"alternative_solution"`
}

// TransitionRequest payload for POST /tickets/:id/transitions.
type TransitionRequest struct {
	Action  domain.Action `json:"action" validate:"required"`
	Payload struct {
		AssigneeID string            `json:"assignee_id"`
		Diagnosis  *DiagnosisRequest `json:"diagnosis" validate:"omitempty"`
		Reason     string            `json:"reason" validate:"max=2000"`
		Note       string            `json:"note" validate:"max=2000"`
	} `json:"payload"`
}

// TransitionPayload converts the request to the service payload.
func (r TransitionRequest) TransitionPayload() service.TransitionPayload {
	payload := service.TransitionPayload{
		AssigneeID: r.Payload.AssigneeID,
		Reason:     r.Payload.Reason,
		Note:       r.Payload.Note,
	}
	if d := r.Payload.Diagnosis; d != nil {
		payload.Diagnosis = &service.DiagnosisInput{
			ProblemCategory:     d.ProblemCategory,
			Description:         d.Description,
			Classification:      d.Classification,
			RepairDescription:   d.RepairDescription,
			UnrepairableReason:  d.UnrepairableReason,
			AlternativeSolution: d.AlternativeSolution,
		}
	}
	return payload
}

// TicketResponse renders either ticket variant with a "type" discriminator.
type TicketResponse struct {
	ticket domain.Ticket
}

// MarshalJSON flattens the variant fields next to the discriminator.
func (r TicketResponse) MarshalJSON() ([]byte, error) {
	switch t := r.ticket.(type) {
	case *domain.RepairTicket:
		return json.Marshal(struct {
			Type domain.TicketType `json:"type"`
			*domain.RepairTicket
		}{t.Type(), t})
	case *domain.BookingTicket:
		return json.Marshal(struct {
			Type domain.TicketType `json:"type"`
			*domain.BookingTicket
		}{t.Type(), t})
	default:
		return []byte("null"), nil
	}
}

// TicketDetailResponse is the ticket detail with work orders and actionability.
type TicketDetailResponse struct {
	Ticket        TicketResponse       `json:"ticket"`
	WorkOrders    []domain.WorkOrder   `json:"work_orders"`
	Actionability domain.Actionability `json:"actionability"`
}

// TransitionResponse is returned by a successful transition.
type TransitionResponse struct {
	Ticket  TicketResponse `json:"ticket"`
	HostKey string         `json:"host_key,omitempty"`
}

// BookingCreatedResponse is returned when a booking is created, with the
// accepted soft conflict if Override was used.
type BookingCreatedResponse struct {
	Ticket  TicketResponse   `json:"ticket"`
	Warning *domain.Conflict `json:"warning,omitempty"`
}

// NewTicketResponses renders a list of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, NewTicketResponse(t))
	}
	return out
}

// NewTicketResponse tags a ticket with its variant.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{ticket: t}
}

func attachments(in []AttachmentRequest) []domain.Attachment {
	out := make([]domain.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, domain.Attachment{FileName: a.FileName, URL: a.URL, MimeType: a.MimeType})
	}
	return out
}

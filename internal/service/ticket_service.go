package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

const (
	repairNumberPrefix  = "REP"
	bookingNumberPrefix = "BKG"
)

// TicketService is the ticket state machine: creation, transitions and the
// derived actionability of repair and booking tickets.
type TicketService struct {
	workflow
	credentials CredentialsConfig
}

// CredentialsConfig controls the meeting credentials issued on booking approval.
type CredentialsConfig struct {
	MeetingBaseURL string
	BcryptCost     int
}

// RepairTicketInput describes a new repair request.
type RepairTicketInput struct {
	Title       string
	Description string
	Severity    domain.Severity
	Asset       domain.AssetRef
	Attachments []domain.Attachment
}

// BookingTicketInput describes a new reservation request. Override accepts a
// soft conflict that was previously reported as a warning.
type BookingTicketInput struct {
	Title         string
	Description   string
	ResourceID    string
	Start         time.Time
	End           time.Time
	Participants  int
	BreakoutRooms int
	CoHosts       []string
	Attachments   []domain.Attachment
	Override      bool
}

// BookingOutcome is the result of CreateBookingTicket. When a soft conflict
// is found without Override, Ticket is nil and Warning names the conflict.
// When Override accepted a soft conflict, both are set.
type BookingOutcome struct {
	Ticket  *domain.BookingTicket
	Warning *domain.Conflict
}

// DiagnosisInput is the technician's finding supplied with the diagnose action.
type DiagnosisInput struct {
	ProblemCategory     string
	Description         string
	Classification      domain.RepairClassification
	RepairDescription   string
	UnrepairableReason  string
	AlternativeSolution string
}

// TransitionPayload carries the action-specific inputs of Transition.
type TransitionPayload struct {
	AssigneeID string
	Diagnosis  *DiagnosisInput
	Reason     string
	Note       string
}

// TransitionResult is the ticket after a successful transition. HostKey holds
// the plaintext booking host key and is only set by approve.
type TransitionResult struct {
	Ticket  domain.Ticket
	HostKey string
}

// TicketView is a ticket with its work orders and the actor's actionability.
type TicketView struct {
	Ticket        domain.Ticket
	WorkOrders    []domain.WorkOrder
	Actionability domain.Actionability
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Type        *domain.TicketType
	Statuses    []string
	RequesterID *string
	AssigneeID  *string
	AssetCode   *string
	ResourceID  *string
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies, credentials CredentialsConfig) *TicketService {
	if credentials.MeetingBaseURL == "" {
		credentials.MeetingBaseURL = "https://meet.example.com/j/"
	}
	return &TicketService{workflow: newWorkflow(deps), credentials: credentials}
}

// CreateRepairTicket opens a repair request in status submitted.
func (s *TicketService) CreateRepairTicket(ctx context.Context, actor domain.Principal, input RepairTicketInput) (*domain.RepairTicket, error) {
	if err := required("", "title", input.Title); err != nil {
		return nil, err
	}
	if err := required("", "asset.code", input.Asset.Code); err != nil {
		return nil, err
	}
	if input.Severity == "" {
		input.Severity = domain.SeverityMedium
	}
	if !input.Severity.Valid() {
		return nil, apperrors.NewFieldError("", "severity", "unknown severity")
	}
	if err := validateAttachments(input.Attachments); err != nil {
		return nil, err
	}

	now := s.now()
	ticket := &domain.RepairTicket{
		TicketBase: newTicketBase(actor, repairNumberPrefix, input.Title, input.Description, input.Attachments, now),
		Status:     domain.RepairStatusSubmitted,
		Severity:   input.Severity,
		Asset: domain.AssetRef{
			Code:            strings.TrimSpace(input.Asset.Code),
			InventoryNumber: strings.TrimSpace(input.Asset.InventoryNumber),
			Location:        strings.TrimSpace(input.Asset.Location),
		},
	}
	ticket.Append(domain.NewTimelineEntry(now, actor, "create", "", string(ticket.Status), map[string]string{
		"severity":   string(ticket.Severity),
		"asset_code": ticket.Asset.Code,
	}))

	err := s.serialize(ctx, func(ctx context.Context, out *[]events.Event) error {
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		*out = append(*out, ticketCreatedEvent(actor, ticket, now))
		return nil
	}, lock.TicketKey(ticket.ID))
	if err != nil {
		return nil, err
	}

	s.logger.Info("repair ticket created", zap.String("ticket_id", ticket.ID), zap.String("number", ticket.Number))
	return ticket, nil
}

// CreateBookingTicket requests a reservation. The conflict check runs under
// the resource lock inside the same transaction as the insert, so a booking
// accepted concurrently is always seen.
func (s *TicketService) CreateBookingTicket(ctx context.Context, actor domain.Principal, input BookingTicketInput) (*BookingOutcome, error) {
	if err := required("", "title", input.Title); err != nil {
		return nil, err
	}
	if err := required("", "resource_id", input.ResourceID); err != nil {
		return nil, err
	}
	interval := domain.Interval{Start: input.Start.UTC(), End: input.End.UTC()}
	if !interval.Valid() {
		return nil, apperrors.NewFieldError("", "end", "must be after start")
	}
	if input.Participants < 1 {
		return nil, apperrors.NewFieldError("", "participants", "must be at least 1")
	}
	if input.BreakoutRooms < 0 {
		return nil, apperrors.NewFieldError("", "breakout_rooms", "must not be negative")
	}
	if err := validateAttachments(input.Attachments); err != nil {
		return nil, err
	}

	outcome := &BookingOutcome{}
	err := s.serialize(ctx, func(ctx context.Context, out *[]events.Event) error {
		resource, err := s.resources.GetByIDForUpdate(ctx, input.ResourceID)
		if err != nil {
			return notFound(err, "resource", input.ResourceID)
		}
		if err := checkResourceAccepts(resource, input.Participants); err != nil {
			return err
		}

		existing, err := s.tickets.ListBookingEvents(ctx, resource.ID)
		if err != nil {
			return err
		}
		conflict := domain.ClassifyConflict(existing, interval, "")
		switch conflict.Kind {
		case domain.ConflictHard:
			return scheduleConflictError(resource.ID, conflict)
		case domain.ConflictSoft:
			outcome.Warning = &conflict
			if !input.Override {
				return nil
			}
		}

		now := s.now()
		ticket := &domain.BookingTicket{
			TicketBase:    newTicketBase(actor, bookingNumberPrefix, input.Title, input.Description, input.Attachments, now),
			Status:        domain.BookingStatusPendingReview,
			ResourceID:    resource.ID,
			Start:         interval.Start,
			End:           interval.End,
			Participants:  input.Participants,
			BreakoutRooms: input.BreakoutRooms,
			CoHosts:       normalizeList(input.CoHosts),
		}
		details := map[string]string{
			"resource_id": resource.ID,
			"start":       interval.Start.Format(time.RFC3339),
			"end":         interval.End.Format(time.RFC3339),
		}
		if outcome.Warning != nil {
			details["override"] = "true"
			details["conflicting_ticket"] = outcome.Warning.Event.TicketNumber
		}
		ticket.Append(domain.NewTimelineEntry(now, actor, "create", "", string(ticket.Status), details))

		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		outcome.Ticket = ticket
		*out = append(*out, ticketCreatedEvent(actor, ticket, now))
		return nil
	}, lock.ResourceKey(input.ResourceID))
	if err != nil {
		return nil, err
	}

	if outcome.Ticket != nil {
		s.logger.Info("booking ticket created",
			zap.String("ticket_id", outcome.Ticket.ID),
			zap.String("resource_id", outcome.Ticket.ResourceID),
			zap.Bool("override", outcome.Warning != nil))
	}
	return outcome, nil
}

// Transition applies action to the ticket. It is the only way a ticket
// status changes. Failures are INVALID_TRANSITION (action not defined for
// the status), FORBIDDEN (actor lacks the role), PRECONDITION_FAILED
// (business rule) or VALIDATION_FAILED (missing payload field), in that order.
func (s *TicketService) Transition(ctx context.Context, actor domain.Principal, ticketID string, action domain.Action, payload TransitionPayload) (*TransitionResult, error) {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	keys := []string{lock.TicketKey(ticketID)}
	if booking, ok := domain.AsBooking(current); ok && action == domain.ActionApprove {
		keys = append(keys, lock.ResourceKey(booking.ResourceID))
	}

	result := &TransitionResult{}
	err = s.serialize(ctx, func(ctx context.Context, out *[]events.Event) error {
		ticket, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return notFound(err, "ticket", ticketID)
		}
		from := ticket.CurrentStatus()

		switch t := ticket.(type) {
		case *domain.RepairTicket:
			err = s.transitionRepair(ctx, actor, t, action, payload)
		case *domain.BookingTicket:
			result.HostKey, err = s.transitionBooking(ctx, actor, t, action, payload)
		default:
			err = fmt.Errorf("unsupported ticket type %T", ticket)
		}
		if err != nil {
			return err
		}

		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		result.Ticket = ticket
		*out = append(*out, ticketTransitionedEvent(actor, ticket, action, from, payload.Reason, s.now()))
		return nil
	}, keys...)

	s.metrics.RecordTransition(string(current.Type()), string(action), outcomeCode(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", ticketID),
		zap.String("action", string(action)),
		zap.String("to", result.Ticket.CurrentStatus()))
	return result, nil
}

func (s *TicketService) transitionRepair(ctx context.Context, actor domain.Principal, t *domain.RepairTicket, action domain.Action, p TransitionPayload) error {
	next, ok := domain.NextRepairStatus(t.Status, action)
	if !ok {
		return apperrors.NewInvalidTransition(t.ID, string(action), string(t.Status))
	}
	if reason := domain.Authorize(actor, t, action); reason != "" {
		return apperrors.NewForbidden(reason)
	}
	orders, err := s.orders.ListByTicket(ctx, t.ID)
	if err != nil {
		return err
	}
	if reason := domain.RepairPrecondition(t, action, orders); reason != "" {
		return apperrors.NewPreconditionFailed(t.ID, string(action), reason)
	}

	now := s.now()
	details := map[string]string{"note": strings.TrimSpace(p.Note)}
	switch action {
	case domain.ActionAssign:
		assignee, err := s.resolveTechnician(ctx, t.ID, p.AssigneeID)
		if err != nil {
			return err
		}
		t.AssigneeID = &assignee.ID
		t.AssigneeName = &assignee.Name
		details["assignee_id"] = assignee.ID
		details["assignee_name"] = assignee.Name
	case domain.ActionDiagnose:
		diagnosis, err := buildDiagnosis(t.ID, actor, p.Diagnosis, now)
		if err != nil {
			return err
		}
		if t.Diagnosis != nil {
			details["rediagnosis"] = "true"
		}
		t.Diagnosis = diagnosis
		details["classification"] = string(diagnosis.Classification)
		details["problem_category"] = diagnosis.ProblemCategory
	case domain.ActionRequestProcurement:
		t.WorkOrdersReady = false
	case domain.ActionMarkWorkOrdersReady:
		t.WorkOrdersReady = true
	case domain.ActionConfirmClose:
		closed := now
		t.ClosedAt = &closed
	case domain.ActionReopen:
		details["reason"] = strings.TrimSpace(p.Reason)
	case domain.ActionReject:
		if err := required(t.ID, "reason", p.Reason); err != nil {
			return err
		}
		t.RejectionReason = strings.TrimSpace(p.Reason)
		details["reason"] = t.RejectionReason
	}

	from := t.Status
	t.Status = next
	t.Append(domain.NewTimelineEntry(now, actor, string(action), string(from), string(next), details))
	return nil
}

func (s *TicketService) transitionBooking(ctx context.Context, actor domain.Principal, t *domain.BookingTicket, action domain.Action, p TransitionPayload) (string, error) {
	next, ok := domain.NextBookingStatus(t.Status, action)
	if !ok {
		return "", apperrors.NewInvalidTransition(t.ID, string(action), string(t.Status))
	}
	if reason := domain.Authorize(actor, t, action); reason != "" {
		return "", apperrors.NewForbidden(reason)
	}

	now := s.now()
	details := map[string]string{"note": strings.TrimSpace(p.Note)}
	var hostKey string
	switch action {
	case domain.ActionApprove:
		resource, err := s.resources.GetByIDForUpdate(ctx, t.ResourceID)
		if err != nil {
			return "", notFound(err, "resource", t.ResourceID)
		}
		if !resource.Active {
			return "", apperrors.NewPreconditionFailed(t.ID, string(action), "resource is inactive")
		}
		existing, err := s.tickets.ListBookingEvents(ctx, t.ResourceID)
		if err != nil {
			return "", err
		}
		if conflict := domain.ClassifyConflict(existing, t.Interval(), t.ID); conflict.Kind == domain.ConflictHard {
			return "", scheduleConflictError(t.ResourceID, conflict)
		}
		creds, plain, err := s.issueCredentials()
		if err != nil {
			return "", apperrors.NewInternalError(err)
		}
		t.Credentials = creds
		hostKey = plain
		details["meeting_id"] = creds.MeetingID
	case domain.ActionReject:
		if err := required(t.ID, "reason", p.Reason); err != nil {
			return "", err
		}
		t.RejectionReason = strings.TrimSpace(p.Reason)
		details["reason"] = t.RejectionReason
	case domain.ActionCancel:
		t.CancellationReason = strings.TrimSpace(p.Reason)
		details["reason"] = t.CancellationReason
	}

	from := t.Status
	t.Status = next
	t.Append(domain.NewTimelineEntry(now, actor, string(action), string(from), string(next), details))
	return hostKey, nil
}

// Get returns a ticket with its work orders and the actor's actionability.
func (s *TicketService) Get(ctx context.Context, actor domain.Principal, ticketID string) (*TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	if !domain.CanView(actor, ticket) {
		return nil, apperrors.NewForbidden("ticket belongs to another requester")
	}
	var orders []domain.WorkOrder
	if ticket.Type() == domain.TicketTypeRepair {
		if orders, err = s.orders.ListByTicket(ctx, ticketID); err != nil {
			return nil, err
		}
	}
	actions := domain.ActionabilityFor(actor, ticket, orders)
	if booking, ok := domain.AsBooking(ticket); ok && actions[domain.ActionApprove].Enabled {
		existing, err := s.tickets.ListBookingEvents(ctx, booking.ResourceID)
		if err != nil {
			return nil, err
		}
		if reason := domain.ApprovalBlocker(booking, existing); reason != "" {
			actions[domain.ActionApprove] = domain.ActionState{Reason: reason}
		}
	}
	return &TicketView{
		Ticket:        ticket,
		WorkOrders:    orders,
		Actionability: actions,
	}, nil
}

// Actionability reports which actions the actor can currently take on the ticket.
func (s *TicketService) Actionability(ctx context.Context, actor domain.Principal, ticketID string) (domain.Actionability, error) {
	view, err := s.Get(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	return view.Actionability, nil
}

// List returns tickets matching filter. Requesters only ever see their own.
func (s *TicketService) List(ctx context.Context, actor domain.Principal, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Type:        filter.Type,
		Statuses:    filter.Statuses,
		RequesterID: filter.RequesterID,
		AssigneeID:  filter.AssigneeID,
		AssetCode:   filter.AssetCode,
		ResourceID:  filter.ResourceID,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if repoFilter.Limit <= 0 || repoFilter.Limit > 200 {
		repoFilter.Limit = 50
	}
	if actor.Role == domain.RoleRequester {
		repoFilter.RequesterID = &actor.ID
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func (s *TicketService) resolveTechnician(ctx context.Context, ticketID, assigneeID string) (*domain.Principal, error) {
	if err := required(ticketID, "assignee_id", assigneeID); err != nil {
		return nil, err
	}
	assignee, err := s.directory.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewPreconditionFailed(ticketID, string(domain.ActionAssign), "assignee is not a known technician")
		}
		return nil, err
	}
	if !assignee.IsTechnician() {
		return nil, apperrors.NewPreconditionFailed(ticketID, string(domain.ActionAssign), "assignee must be a technician")
	}
	return assignee, nil
}

func (s *TicketService) issueCredentials() (*domain.BookingCredentials, string, error) {
	meetingID := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	passcode, err := auth.RandomDigits(6)
	if err != nil {
		return nil, "", err
	}
	hostKey, err := auth.RandomDigits(6)
	if err != nil {
		return nil, "", err
	}
	hash, err := auth.HashSecret(hostKey, s.credentials.BcryptCost)
	if err != nil {
		return nil, "", err
	}
	return &domain.BookingCredentials{
		MeetingLink: s.credentials.MeetingBaseURL + meetingID,
		MeetingID:   meetingID,
		Passcode:    passcode,
		HostKeyHash: hash,
	}, hostKey, nil
}

func buildDiagnosis(ticketID string, actor domain.Principal, input *DiagnosisInput, now time.Time) (*domain.Diagnosis, error) {
	if input == nil {
		return nil, apperrors.NewFieldError(ticketID, "diagnosis", "required")
	}
	diagnosis := &domain.Diagnosis{
		ProblemCategory:     strings.TrimSpace(input.ProblemCategory),
		Description:         strings.TrimSpace(input.Description),
		Classification:      input.Classification,
		RepairDescription:   strings.TrimSpace(input.RepairDescription),
		UnrepairableReason:  strings.TrimSpace(input.UnrepairableReason),
		AlternativeSolution: strings.TrimSpace(input.AlternativeSolution),
		DiagnosedBy:         actor.Name,
		DiagnosedAt:         now,
	}
	if problem := diagnosis.Validate(); problem != nil {
		return nil, apperrors.NewFieldError(ticketID, "diagnosis."+problem.Field, problem.Reason)
	}
	return diagnosis, nil
}

func checkResourceAccepts(resource *domain.Resource, participants int) error {
	if !resource.Active {
		return apperrors.NewPreconditionFailed(resource.ID, "createBooking", "resource is inactive")
	}
	if participants > resource.Capacity {
		return apperrors.NewPreconditionFailed(resource.ID, "createBooking",
			fmt.Sprintf("participants exceed resource capacity of %d", resource.Capacity))
	}
	return nil
}

func scheduleConflictError(resourceID string, conflict domain.Conflict) error {
	return apperrors.NewScheduleConflict("the requested interval overlaps a confirmed booking", conflictDetails(resourceID, conflict))
}

// ScheduleWarningError renders an un-overridden soft conflict for transports
// that report it as an error.
func ScheduleWarningError(resourceID string, conflict domain.Conflict) error {
	return apperrors.NewScheduleWarning("the requested interval overlaps a pending booking; resubmit with override to proceed",
		conflictDetails(resourceID, conflict))
}

func conflictDetails(resourceID string, conflict domain.Conflict) map[string]any {
	details := map[string]any{
		"resource_id": resourceID,
		"overlapping": conflict.Overlapping,
	}
	if conflict.Event != nil {
		details["ticket_id"] = conflict.Event.TicketID
		details["ticket_number"] = conflict.Event.TicketNumber
		details["status"] = conflict.Event.Status
		details["start"] = conflict.Event.Start
		details["end"] = conflict.Event.End
	}
	return details
}

func newTicketBase(actor domain.Principal, prefix, title, description string, attachments []domain.Attachment, now time.Time) domain.TicketBase {
	return domain.TicketBase{
		ID:            uuid.NewString(),
		Number:        generateTicketNumber(prefix),
		Title:         strings.TrimSpace(title),
		Description:   strings.TrimSpace(description),
		RequesterID:   actor.ID,
		RequesterName: actor.Name,
		Attachments:   normalizeAttachments(attachments),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func validateAttachments(attachments []domain.Attachment) error {
	for _, a := range attachments {
		if strings.TrimSpace(a.URL) == "" {
			return apperrors.NewFieldError("", "attachments.url", "required")
		}
	}
	return nil
}

func normalizeAttachments(attachments []domain.Attachment) []domain.Attachment {
	out := make([]domain.Attachment, 0, len(attachments))
	for _, a := range attachments {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		out = append(out, a)
	}
	return out
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func outcomeCode(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.ToDomainError(err).Code
}

func ticketCreatedEvent(actor domain.Principal, t domain.Ticket, at time.Time) events.Event {
	base := t.Base()
	return events.Event{
		Type:         events.EventTicketCreated,
		TicketID:     base.ID,
		TicketNumber: base.Number,
		Actor:        actor,
		Timestamp:    at,
		Payload: events.TicketCreatedPayload{
			TicketType:  t.Type(),
			Title:       base.Title,
			Status:      t.CurrentStatus(),
			RequesterID: base.RequesterID,
		},
	}
}

func ticketTransitionedEvent(actor domain.Principal, t domain.Ticket, action domain.Action, from, reason string, at time.Time) events.Event {
	base := t.Base()
	return events.Event{
		Type:         events.EventTicketTransitioned,
		TicketID:     base.ID,
		TicketNumber: base.Number,
		Actor:        actor,
		Timestamp:    at,
		Payload: events.TicketTransitionedPayload{
			TicketType:  t.Type(),
			Action:      action,
			From:        from,
			To:          t.CurrentStatus(),
			RequesterID: base.RequesterID,
			AssigneeID:  base.AssigneeID,
			Reason:      strings.TrimSpace(reason),
		},
	}
}

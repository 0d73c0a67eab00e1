package domain

// Action names a ticket transition.
type Action string

const (
	ActionAssign              Action = "assign"
	ActionStartWork           Action = "startWork"
	ActionDiagnose            Action = "diagnose"
	ActionRequestProcurement  Action = "requestProcurement"
	ActionMarkWorkOrdersReady Action = "markWorkOrdersReady"
	ActionResumeWork          Action = "resumeWork"
	ActionClose               Action = "close"
	ActionConfirmClose        Action = "confirmClose"
	ActionReopen              Action = "reopen"
	ActionReject              Action = "reject"

	ActionApprove Action = "approve"
	ActionCancel  Action = "cancel"

	// ActionCreateWorkOrder is reported by DeriveActionability only; it does
	// not change ticket status by itself.
	ActionCreateWorkOrder Action = "createWorkOrder"
)

type repairRule struct {
	from []RepairStatus
	to   RepairStatus
}

type bookingRule struct {
	from []BookingStatus
	to   BookingStatus
}

var repairRules = map[Action]repairRule{
	ActionAssign:              {from: []RepairStatus{RepairStatusSubmitted}, to: RepairStatusAssigned},
	ActionStartWork:           {from: []RepairStatus{RepairStatusAssigned}, to: RepairStatusInProgress},
	ActionDiagnose:            {from: []RepairStatus{RepairStatusInProgress}, to: RepairStatusInProgress},
	ActionRequestProcurement:  {from: []RepairStatus{RepairStatusInProgress}, to: RepairStatusOnHold},
	ActionMarkWorkOrdersReady: {from: []RepairStatus{RepairStatusOnHold}, to: RepairStatusOnHold},
	ActionResumeWork:          {from: []RepairStatus{RepairStatusOnHold}, to: RepairStatusInProgress},
	ActionClose:               {from: []RepairStatus{RepairStatusInProgress}, to: RepairStatusWaitingForSubmitter},
	ActionConfirmClose:        {from: []RepairStatus{RepairStatusWaitingForSubmitter}, to: RepairStatusClosed},
	ActionReopen:              {from: []RepairStatus{RepairStatusWaitingForSubmitter}, to: RepairStatusInProgress},
	ActionReject: {
		from: []RepairStatus{RepairStatusSubmitted, RepairStatusAssigned, RepairStatusInProgress},
		to:   RepairStatusRejected,
	},
}

var bookingRules = map[Action]bookingRule{
	ActionApprove: {from: []BookingStatus{BookingStatusPendingReview}, to: BookingStatusApproved},
	ActionReject:  {from: []BookingStatus{BookingStatusPendingReview}, to: BookingStatusRejected},
	ActionCancel:  {from: []BookingStatus{BookingStatusPendingReview, BookingStatusApproved}, to: BookingStatusCancelled},
}

// RepairActions lists repair transitions in presentation order.
var RepairActions = []Action{
	ActionAssign,
	ActionStartWork,
	ActionDiagnose,
	ActionRequestProcurement,
	ActionMarkWorkOrdersReady,
	ActionResumeWork,
	ActionClose,
	ActionConfirmClose,
	ActionReopen,
	ActionReject,
}

// BookingActions lists booking transitions in presentation order.
var BookingActions = []Action{ActionApprove, ActionReject, ActionCancel}

// NextRepairStatus returns the target status of action from current.
func NextRepairStatus(current RepairStatus, action Action) (RepairStatus, bool) {
	rule, ok := repairRules[action]
	if !ok {
		return "", false
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, true
		}
	}
	return "", false
}

// NextBookingStatus returns the target status of action from current.
func NextBookingStatus(current BookingStatus, action Action) (BookingStatus, bool) {
	rule, ok := bookingRules[action]
	if !ok {
		return "", false
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, true
		}
	}
	return "", false
}

// RepairPrecondition returns an empty string when the state-dependent
// precondition of action holds for t and its work orders, or the unmet
// condition otherwise. Payload checks (reasons, assignee role) are left to
// the caller.
func RepairPrecondition(t *RepairTicket, action Action, orders []WorkOrder) string {
	switch action {
	case ActionDiagnose:
		if t.Diagnosis != nil && len(orders) > 0 {
			return "diagnosis is locked once a work order exists"
		}
	case ActionRequestProcurement:
		if t.Diagnosis == nil {
			return "diagnosis required"
		}
		if !t.Diagnosis.Classification.NeedsProcurement() {
			return "diagnosis does not call for procurement"
		}
	case ActionMarkWorkOrdersReady:
		if !AggregateReadiness(orders) {
			return "all work orders must be completed or unsuccessful"
		}
	case ActionResumeWork:
		if !AggregateReadiness(orders) {
			return "all work orders must be completed or unsuccessful"
		}
		if !t.WorkOrdersReady {
			return "work orders have not been confirmed ready"
		}
	case ActionClose:
		if t.Diagnosis == nil {
			return "diagnosis required"
		}
		if t.Diagnosis.Classification != ClassificationDirectRepair && !AggregateReadiness(orders) {
			return "all work orders must be completed or unsuccessful"
		}
	}
	return ""
}

// WorkOrderCreationBlocker returns an empty string when a work order of
// type may be created for t, or the reason it may not.
func WorkOrderCreationBlocker(t *RepairTicket, orderType WorkOrderType) string {
	if t.Status != RepairStatusInProgress && t.Status != RepairStatusOnHold {
		return "work orders can only be created while the ticket is in_progress or on_hold"
	}
	if t.Diagnosis == nil {
		return "diagnosis required"
	}
	permitted, ok := t.Diagnosis.Classification.PermittedWorkOrderType()
	if !ok {
		return "diagnosis does not call for procurement"
	}
	if orderType != "" && orderType != permitted {
		return "diagnosis only permits " + string(permitted) + " work orders"
	}
	return ""
}

package domain

// Authorize returns an empty string when actor may perform action on t, or
// the reason it may not. Admins may perform every action. Only role and
// ownership are checked here; status rules live in the transition tables.
func Authorize(actor Principal, t Ticket, action Action) string {
	if actor.IsAdmin() {
		return ""
	}
	base := t.Base()
	switch t.(type) {
	case *RepairTicket:
		switch action {
		case ActionAssign, ActionReject:
			return "only an admin may " + string(action)
		case ActionStartWork, ActionDiagnose, ActionRequestProcurement, ActionMarkWorkOrdersReady,
			ActionResumeWork, ActionClose, ActionCreateWorkOrder:
			if !actor.IsTechnician() || !base.IsAssignedTo(actor.ID) {
				return "only the assigned technician may " + string(action)
			}
		case ActionConfirmClose, ActionReopen:
			if actor.ID != base.RequesterID {
				return "only the requester may " + string(action)
			}
		}
	case *BookingTicket:
		switch action {
		case ActionApprove, ActionReject:
			return "only an admin may " + string(action)
		case ActionCancel:
			if actor.ID != base.RequesterID {
				return "only the requester may cancel"
			}
		}
	}
	return ""
}

// CanView reports whether actor may read t. Requesters only see their own tickets.
func CanView(actor Principal, t Ticket) bool {
	if actor.Role == RoleRequester {
		return t.Base().RequesterID == actor.ID
	}
	return true
}

// ActionabilityFor overlays the actor's permissions on the state-derived
// actionability. Actions the state allows but the actor may not perform are
// disabled with the permission reason.
func ActionabilityFor(actor Principal, t Ticket, orders []WorkOrder) Actionability {
	result := DeriveActionability(t, orders)
	for action, state := range result {
		if !state.Enabled {
			continue
		}
		if reason := Authorize(actor, t, action); reason != "" {
			result[action] = ActionState{Reason: reason}
		}
	}
	return result
}

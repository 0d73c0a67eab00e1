package domain

// ActionState tells a presentation layer whether to enable a control.
type ActionState struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Actionability maps every action of a ticket variant to its state.
type Actionability map[Action]ActionState

// DeriveActionability computes which actions are currently legal for t.
// orders are the work orders of a repair ticket and are ignored for bookings.
func DeriveActionability(t Ticket, orders []WorkOrder) Actionability {
	switch ticket := t.(type) {
	case *RepairTicket:
		return deriveRepairActionability(ticket, orders)
	case *BookingTicket:
		return deriveBookingActionability(ticket)
	default:
		return Actionability{}
	}
}

func deriveRepairActionability(t *RepairTicket, orders []WorkOrder) Actionability {
	result := make(Actionability, len(RepairActions)+1)
	for _, action := range RepairActions {
		if _, ok := NextRepairStatus(t.Status, action); !ok {
			result[action] = ActionState{Reason: notAvailable(string(t.Status))}
			continue
		}
		if reason := RepairPrecondition(t, action, orders); reason != "" {
			result[action] = ActionState{Reason: reason}
			continue
		}
		result[action] = ActionState{Enabled: true}
	}
	if reason := WorkOrderCreationBlocker(t, ""); reason != "" {
		result[ActionCreateWorkOrder] = ActionState{Reason: reason}
	} else {
		result[ActionCreateWorkOrder] = ActionState{Enabled: true}
	}
	return result
}

func deriveBookingActionability(t *BookingTicket) Actionability {
	result := make(Actionability, len(BookingActions))
	for _, action := range BookingActions {
		if _, ok := NextBookingStatus(t.Status, action); !ok {
			result[action] = ActionState{Reason: notAvailable(string(t.Status))}
			continue
		}
		result[action] = ActionState{Enabled: true}
	}
	return result
}

func notAvailable(status string) string {
	return "not available while status is " + status
}

package domain

import "time"

// TimelineEntry is an immutable audit trail entry. Entries are only ever appended.
type TimelineEntry struct {
	At        time.Time         `json:"at"`
	ActorID   string            `json:"actor_id"`
	ActorName string            `json:"actor_name"`
	Action    string            `json:"action"`
	From      string            `json:"from,omitempty"`
	To        string            `json:"to,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewTimelineEntry builds an entry for the given actor.
func NewTimelineEntry(at time.Time, actor Principal, action, from, to string, details map[string]string) TimelineEntry {
	entry := TimelineEntry{
		At:        at.UTC(),
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		From:      from,
		To:        to,
	}
	if len(details) > 0 {
		entry.Details = make(map[string]string, len(details))
		for k, v := range details {
			if v == "" {
				continue
			}
			entry.Details[k] = v
		}
		if len(entry.Details) == 0 {
			entry.Details = nil
		}
	}
	return entry
}

func cloneTimeline(entries []TimelineEntry) []TimelineEntry {
	if entries == nil {
		return nil
	}
	out := make([]TimelineEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		if e.Details != nil {
			out[i].Details = make(map[string]string, len(e.Details))
			for k, v := range e.Details {
				out[i].Details[k] = v
			}
		}
	}
	return out
}

package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	requestDuration map[string]time.Duration
	errorCount      map[string]int64
	transitionCount map[string]int64
}

// Counter is one named counter in a Snapshot.
type Counter struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// Snapshot is a point-in-time copy of all counters, sorted by key.
type Snapshot struct {
	Requests         []Counter        `json:"requests"`
	AvgLatencyMillis map[string]int64 `json:"avg_latency_ms"`
	Errors           []Counter        `json:"errors"`
	Transitions      []Counter        `json:"transitions"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		requestDuration: make(map[string]time.Duration),
		errorCount:      make(map[string]int64),
		transitionCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestDuration[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTransition counts a ticket transition attempt by ticket type, action
// and outcome code ("ok" on success).
func (m *Metrics) RecordTransition(ticketType, action, outcome string) {
	if m == nil {
		return
	}
	key := ticketType + "|" + action + "|" + outcome
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[key]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{AvgLatencyMillis: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	latency := make(map[string]int64, len(m.requestDuration))
	for key, total := range m.requestDuration {
		if n := m.requestCount[key]; n > 0 {
			latency[key] = (total / time.Duration(n)).Milliseconds()
		}
	}
	return Snapshot{
		Requests:         sortedCounters(m.requestCount),
		AvgLatencyMillis: latency,
		Errors:           sortedCounters(m.errorCount),
		Transitions:      sortedCounters(m.transitionCount),
	}
}

func sortedCounters(in map[string]int64) []Counter {
	out := make([]Counter, 0, len(in))
	for key, value := range in {
		out = append(out, Counter{Key: key, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

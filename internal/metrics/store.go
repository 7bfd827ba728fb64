package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Store maintains in-memory gauges and counters for bot telemetry.
type Store struct {
	cyclesTotal        atomic.Uint64
	cycleFailures      atomic.Uint64
	monitorsConfigured atomic.Int64
	monitorsSkipped    atomic.Uint64
	messagesCreated    atomic.Uint64
	messagesEdited     atomic.Uint64
	staleIDsCleared    atomic.Uint64
	lastCycleUnix      atomic.Int64

	readinessState  atomic.Int64
	readinessReason atomic.Value
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	store := &Store{}
	store.readinessReason.Store("")
	return store
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	CyclesTotal        uint64
	CycleFailures      uint64
	MonitorsConfigured int64
	MonitorsSkipped    uint64
	MessagesCreated    uint64
	MessagesEdited     uint64
	StaleIDsCleared    uint64
	LastCycleUnix      int64
	Ready              bool
	ReadyReason        string
}

// Snapshot returns a point-in-time copy of the metrics.
func (s *Store) Snapshot() Snapshot {
	reason, _ := s.readinessReason.Load().(string)
	return Snapshot{
		CyclesTotal:        s.cyclesTotal.Load(),
		CycleFailures:      s.cycleFailures.Load(),
		MonitorsConfigured: s.monitorsConfigured.Load(),
		MonitorsSkipped:    s.monitorsSkipped.Load(),
		MessagesCreated:    s.messagesCreated.Load(),
		MessagesEdited:     s.messagesEdited.Load(),
		StaleIDsCleared:    s.staleIDsCleared.Load(),
		LastCycleUnix:      s.lastCycleUnix.Load(),
		Ready:              s.readinessState.Load() == 1,
		ReadyReason:        reason,
	}
}

// CycleRecorder returns an implementation backed by the store.
func (s *Store) CycleRecorder() CycleRecorder {
	return cycleRecorder{store: s}
}

type cycleRecorder struct {
	store *Store
}

func (r cycleRecorder) ObserveCycle(monitors int, completedUnix int64) {
	r.store.cyclesTotal.Add(1)
	r.store.monitorsConfigured.Store(int64(monitors))
	r.store.lastCycleUnix.Store(completedUnix)
}

func (r cycleRecorder) IncCycleFailures()   { r.store.cycleFailures.Add(1) }
func (r cycleRecorder) IncMonitorsSkipped() { r.store.monitorsSkipped.Add(1) }
func (r cycleRecorder) IncMessagesCreated() { r.store.messagesCreated.Add(1) }
func (r cycleRecorder) IncMessagesEdited()  { r.store.messagesEdited.Add(1) }
func (r cycleRecorder) IncStaleIDsCleared() { r.store.staleIDsCleared.Add(1) }

// ObserveReadiness records the latest readiness evaluation.
func (s *Store) ObserveReadiness(ready bool, reason string) {
	if ready {
		s.readinessState.Store(1)
		s.readinessReason.Store("")
		return
	}
	s.readinessState.Store(0)
	s.readinessReason.Store(reason)
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	readyValue := 0
	if snap.Ready {
		readyValue = 1
	}
	reason := snap.ReadyReason
	if snap.Ready {
		reason = "ready"
	} else if reason == "" {
		reason = "unknown"
	}
	lines := []string{
		"# HELP statusbot_cycles_total Total reconciliation cycles completed.",
		"# TYPE statusbot_cycles_total counter",
		fmt.Sprintf("statusbot_cycles_total %d", snap.CyclesTotal),
		"# HELP statusbot_cycle_failures_total Total cycles aborted by an unexpected error.",
		"# TYPE statusbot_cycle_failures_total counter",
		fmt.Sprintf("statusbot_cycle_failures_total %d", snap.CycleFailures),
		"# HELP statusbot_monitors_configured Number of monitors seen in the most recent cycle.",
		"# TYPE statusbot_monitors_configured gauge",
		fmt.Sprintf("statusbot_monitors_configured %d", snap.MonitorsConfigured),
		"# HELP statusbot_monitors_skipped_total Monitors skipped because fetch or channel resolution failed.",
		"# TYPE statusbot_monitors_skipped_total counter",
		fmt.Sprintf("statusbot_monitors_skipped_total %d", snap.MonitorsSkipped),
		"# HELP statusbot_messages_created_total Status messages created.",
		"# TYPE statusbot_messages_created_total counter",
		fmt.Sprintf("statusbot_messages_created_total %d", snap.MessagesCreated),
		"# HELP statusbot_messages_edited_total Status messages edited in place.",
		"# TYPE statusbot_messages_edited_total counter",
		fmt.Sprintf("statusbot_messages_edited_total %d", snap.MessagesEdited),
		"# HELP statusbot_stale_message_ids_cleared_total Stored message ids cleared after a remote deletion.",
		"# TYPE statusbot_stale_message_ids_cleared_total counter",
		fmt.Sprintf("statusbot_stale_message_ids_cleared_total %d", snap.StaleIDsCleared),
		"# HELP statusbot_last_cycle_completed_unix Unix timestamp of the most recently completed cycle.",
		"# TYPE statusbot_last_cycle_completed_unix gauge",
		fmt.Sprintf("statusbot_last_cycle_completed_unix %d", snap.LastCycleUnix),
		"# HELP statusbot_ready Whether the bot considers itself ready (1=ready).",
		"# TYPE statusbot_ready gauge",
		fmt.Sprintf("statusbot_ready %d", readyValue),
		"# HELP statusbot_ready_info Reason associated with the most recent readiness evaluation.",
		"# TYPE statusbot_ready_info gauge",
		fmt.Sprintf("statusbot_ready_info{reason=%q} 1", reason),
	}
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}

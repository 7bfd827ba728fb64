package metrics

// CycleRecorder is the slice of the store the reconciliation loop writes to.
type CycleRecorder interface {
	ObserveCycle(monitors int, completedUnix int64)
	IncCycleFailures()
	IncMonitorsSkipped()
	IncMessagesCreated()
	IncMessagesEdited()
	IncStaleIDsCleared()
}

type NoopCycleRecorder struct{}

func (NoopCycleRecorder) ObserveCycle(monitors int, completedUnix int64) {}
func (NoopCycleRecorder) IncCycleFailures()                              {}
func (NoopCycleRecorder) IncMonitorsSkipped()                            {}
func (NoopCycleRecorder) IncMessagesCreated()                            {}
func (NoopCycleRecorder) IncMessagesEdited()                             {}
func (NoopCycleRecorder) IncStaleIDsCleared()                            {}

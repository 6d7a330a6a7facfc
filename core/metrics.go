package core

// Metrics records domain events for monitoring.
type Metrics interface {
	// ResultsWritten counts result mutations; op is create, update or delete.
	ResultsWritten(op string, n int)
	// CohortRecomputed counts statistics/position refreshes and their failures.
	CohortRecomputed(err error)
	// AuditRecordFailed counts history entries that could not be written.
	AuditRecordFailed()
}

type nopMetrics struct{}

// NopMetrics discards every event.
var NopMetrics Metrics = nopMetrics{}

func (nopMetrics) ResultsWritten(string, int) {}
func (nopMetrics) CohortRecomputed(error)     {}
func (nopMetrics) AuditRecordFailed()         {}

package cursorwindow

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting fill metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordFill is called after each fill.
	// res carries the row counts, err is nil if successful.
	RecordFill(res FillResult, duration time.Duration, err error)

	// RecordRestart is called each time a page is discarded to reach the required row.
	RecordRestart()

	// RecordBusyRetry is called for every busy signal from the cursor.
	RecordBusyRetry()

	// RecordInflate is called after each growth attempt.
	RecordInflate(newSize int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFill(FillResult, time.Duration, error) {}
func (NoopMetricsCollector) RecordRestart()                               {}
func (NoopMetricsCollector) RecordBusyRetry()                             {}
func (NoopMetricsCollector) RecordInflate(int, error)                     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	FillCount      atomic.Int64
	FillErrors     atomic.Int64
	FillTotalNanos atomic.Int64
	RowsObserved   atomic.Int64
	RowsCopied     atomic.Int64
	Restarts       atomic.Int64
	BusyRetries    atomic.Int64
	Inflates       atomic.Int64
	InflateErrors  atomic.Int64
}

// RecordFill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFill(res FillResult, duration time.Duration, err error) {
	b.FillCount.Add(1)
	b.FillTotalNanos.Add(duration.Nanoseconds())
	b.RowsObserved.Add(int64(res.TotalRows))
	b.RowsCopied.Add(int64(res.AddedRows))
	if err != nil {
		b.FillErrors.Add(1)
	}
}

// RecordRestart implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestart() {
	b.Restarts.Add(1)
}

// RecordBusyRetry implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBusyRetry() {
	b.BusyRetries.Add(1)
}

// RecordInflate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInflate(_ int, err error) {
	if err != nil {
		b.InflateErrors.Add(1)
		return
	}
	b.Inflates.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		FillCount:     b.FillCount.Load(),
		FillErrors:    b.FillErrors.Load(),
		RowsObserved:  b.RowsObserved.Load(),
		RowsCopied:    b.RowsCopied.Load(),
		Restarts:      b.Restarts.Load(),
		BusyRetries:   b.BusyRetries.Load(),
		Inflates:      b.Inflates.Load(),
		InflateErrors: b.InflateErrors.Load(),
	}
	if s.FillCount > 0 {
		s.FillAvgNanos = b.FillTotalNanos.Load() / s.FillCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FillCount     int64
	FillErrors    int64
	FillAvgNanos  int64
	RowsObserved  int64
	RowsCopied    int64
	Restarts      int64
	BusyRetries   int64
	Inflates      int64
	InflateErrors int64
}

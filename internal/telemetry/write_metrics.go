package telemetry

import (
	"sync/atomic"
	"time"
)

// WriteMetrics fasst Messwerte zu Schreib-Transaktionen zusammen.
type WriteMetrics struct {
	totalDuration atomic.Int64
	attempts      atomic.Uint64
	failures      atomic.Uint64
	published     atomic.Uint64
}

var defaultWriteMetrics WriteMetrics

// DefaultWriteMetrics liefert die globalen Metriken.
func DefaultWriteMetrics() *WriteMetrics {
	return &defaultWriteMetrics
}

// TraceWrite startet ein Transaktions-Span und liefert eine Abschlussfunktion,
// die Dauer, Batch-Größe und Fehlerzustand meldet. Datensätze zählen nur bei
// erfolgreichen Transaktionen.
func TraceWrite() func(published int, err error) {
	start := time.Now()
	defaultWriteMetrics.attempts.Add(1)
	return func(published int, err error) {
		elapsed := time.Since(start)
		defaultWriteMetrics.totalDuration.Add(elapsed.Nanoseconds())
		if err != nil {
			defaultWriteMetrics.failures.Add(1)
			return
		}
		defaultWriteMetrics.published.Add(uint64(published))
	}
}

// Snapshot gibt die gesammelten Werte zurück.
func (m *WriteMetrics) Snapshot() (attempts, failures, published uint64, average time.Duration) {
	attempts = m.attempts.Load()
	failures = m.failures.Load()
	published = m.published.Load()
	total := m.totalDuration.Load()
	if attempts == 0 {
		return attempts, failures, published, 0
	}
	average = time.Duration(total / int64(attempts))
	return attempts, failures, published, average
}

// Reset setzt alle Zähler zurück.
func (m *WriteMetrics) Reset() {
	m.totalDuration.Store(0)
	m.attempts.Store(0)
	m.failures.Store(0)
	m.published.Store(0)
}

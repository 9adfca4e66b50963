package monitoring

import (
	"sync"
	"time"
)

// Monitor keeps a point-in-time snapshot of runtime facts for the health endpoint
type Monitor struct {
	metrics      map[string]interface{}
	metricsMutex sync.RWMutex
	startTime    time.Time
}

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:   make(map[string]interface{}),
		startTime: time.Now(),
	}
}

// RecordMetric records a metric value
func (m *Monitor) RecordMetric(name string, value interface{}) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics[name] = value
}

// GetMetrics returns a copy of all values plus the process uptime
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	metrics := make(map[string]interface{}, len(m.metrics)+1)
	for k, v := range m.metrics {
		metrics[k] = v
	}
	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()

	return metrics
}

// RecordArchiveRun stores the outcome of the last day-rollover sweep
func (m *Monitor) RecordArchiveRun(at time.Time, archived int, err error) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	m.metrics["archive_last_run"] = at.UTC().Format(time.RFC3339)
	m.metrics["archive_last_count"] = archived
	if err != nil {
		m.metrics["archive_last_error"] = err.Error()
	} else {
		delete(m.metrics, "archive_last_error")
	}
}

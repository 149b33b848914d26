package testdoubles

import (
	"sync"
	"time"

	"github.com/schoollib/loanengine/loans"
)

// MetricsCollectorSpy captures metrics calls for assertions.
type MetricsCollectorSpy struct {
	durationRecords []DurationRecord
	counterRecords  []CounterRecord
	valueRecords    []ValueRecord
	mu              sync.Mutex
}

// DurationRecord represents a recorded duration metric call.
type DurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// CounterRecord represents a recorded counter-increment call.
type CounterRecord struct {
	Metric string
	Labels map[string]string
}

// ValueRecord represents a recorded value metric call.
type ValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

// RecordDuration implements the MetricsCollector interface for testing.
func (c *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.durationRecords = append(c.durationRecords, DurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   copyLabels(labels),
	})
}

// IncrementCounter implements the MetricsCollector interface for testing.
func (c *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counterRecords = append(c.counterRecords, CounterRecord{
		Metric: metric,
		Labels: copyLabels(labels),
	})
}

// RecordValue implements the MetricsCollector interface for testing.
func (c *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valueRecords = append(c.valueRecords, ValueRecord{
		Metric: metric,
		Value:  value,
		Labels: copyLabels(labels),
	})
}

// HasDurationRecord checks whether a duration record with the metric name exists.
func (c *MetricsCollectorSpy) HasDurationRecord(metric string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range c.durationRecords {
		if record.Metric == metric {
			return true
		}
	}

	return false
}

// CountCounterRecords counts the counter-increments for one metric name.
func (c *MetricsCollectorSpy) CountCounterRecords(metric string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0

	for _, record := range c.counterRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

// LastValueRecord returns the most recent value record for one metric name.
func (c *MetricsCollectorSpy) LastValueRecord(metric string) (ValueRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.valueRecords) - 1; i >= 0; i-- {
		if c.valueRecords[i].Metric == metric {
			return c.valueRecords[i], true
		}
	}

	return ValueRecord{}, false
}

// Reset clears all captured metric records.
func (c *MetricsCollectorSpy) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.durationRecords = c.durationRecords[:0]
	c.counterRecords = c.counterRecords[:0]
	c.valueRecords = c.valueRecords[:0]
}

func copyLabels(labels map[string]string) map[string]string {
	copied := make(map[string]string, len(labels))
	for key, value := range labels {
		copied[key] = value
	}

	return copied
}

var _ loans.MetricsCollector = (*MetricsCollectorSpy)(nil)

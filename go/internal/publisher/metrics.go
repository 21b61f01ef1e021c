package publisher

import (
	"sync/atomic"
	"time"
)

// MetricsCollector records publisher activity.
type MetricsCollector interface {
	RecordPublished(eventType string, success bool, duration time.Duration)
	RecordDropped(eventType string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordPublished(string, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordDropped(string)                       {}

// Counters is an in-process MetricsCollector reported on the stats endpoint.
type Counters struct {
	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func (c *Counters) RecordPublished(_ string, success bool, _ time.Duration) {
	if success {
		c.published.Add(1)
		return
	}
	c.failed.Add(1)
}

func (c *Counters) RecordDropped(string) {
	c.dropped.Add(1)
}

// CounterStats is a snapshot of Counters.
type CounterStats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func (c *Counters) Stats() CounterStats {
	return CounterStats{
		Published: c.published.Load(),
		Failed:    c.failed.Load(),
		Dropped:   c.dropped.Load(),
	}
}

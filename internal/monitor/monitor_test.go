package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"advisor-core/internal/events"
)

type captureSink struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureSink) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(3)
	for _, v := range []float64{10, 20, 30, 40} {
		h.Record(v)
	}
	s := h.Stats()
	if s.Count != 3 || s.Min != 20 || s.Max != 40 || s.Avg != 30 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestMonitorCountsBreakerTrips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	metrics := NewSystemMetrics()
	sink := &captureSink{}
	(&Monitor{Bus: bus, Metrics: metrics, Sink: sink}).Start(ctx)

	bus.Publish(events.EventProviderTripped, events.ProviderTripped{Provider: "news", Reason: "dial tcp: refused"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if metrics.GetSnapshot().BreakerTrips == 1 && sink.count() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("breaker trip not observed: %+v", metrics.GetSnapshot())
}

func TestTimerRecords(t *testing.T) {
	m := NewSystemMetrics()
	NewTimer(m.NewsLatency).Stop()
	m.IncrementWorkflows()
	m.AddResults(2, 1)
	snap := m.GetSnapshot()
	if snap.NewsLatency.Count != 1 || snap.WorkflowsStarted != 1 || snap.NewsItems != 2 || snap.Snapshots != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

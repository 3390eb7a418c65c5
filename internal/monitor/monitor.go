package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"advisor-core/internal/events"
)

// Monitor turns bus events into metrics and operator alerts.
type Monitor struct {
	Bus     *events.Bus
	Metrics *SystemMetrics
	Sink    AlertSink
	Logger  *zap.Logger
}

// Start subscribes to breaker and workflow topics until ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	log := m.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if m.Bus == nil || m.Metrics == nil {
		log.Warn("[MONITOR] not fully configured; skipping")
		return
	}

	trips, unsubTrips := m.Bus.Subscribe(events.EventProviderTripped, 16)
	failed, unsubFailed := m.Bus.Subscribe(events.EventWorkflowFailed, 64)
	go func() {
		defer unsubTrips()
		defer unsubFailed()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-trips:
				if !ok {
					return
				}
				m.Metrics.IncrementBreakerTrips()
				m.alert(log, formatAlert(msg))
			case msg, ok := <-failed:
				if !ok {
					return
				}
				if wf, ok := msg.(events.WorkflowFinished); ok {
					log.Warn("[MONITOR] workflow failed", zap.String("chat_id", wf.ChatID), zap.String("error", wf.Err))
				}
			}
		}
	}()
}

func (m *Monitor) alert(log *zap.Logger, text string) {
	if m.Sink == nil {
		return
	}
	if err := m.Sink.Send(text); err != nil {
		log.Warn("[MONITOR] alert delivery failed", zap.Error(err))
	}
}

func formatAlert(msg any) string {
	return "[" + time.Now().Format(time.RFC3339) + "] " + toString(msg)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case events.ProviderTripped:
		return fmt.Sprintf("provider %s disabled: %s", t.Provider, t.Reason)
	default:
		return "alert triggered"
	}
}

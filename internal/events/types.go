package events

import "time"

// Event enumerates in-process topics published on the Bus.
type Event string

const (
	EventProviderTripped   Event = "provider.tripped"
	EventWorkflowCompleted Event = "workflow.completed"
	EventWorkflowFailed    Event = "workflow.failed"
)

// ProviderTripped is published once when a provider breaker opens.
type ProviderTripped struct {
	Provider string
	Reason   string
	At       time.Time
}

// WorkflowFinished is published when a pipeline run terminates.
// Err is empty on success.
type WorkflowFinished struct {
	ChatID   string
	Err      string
	Duration time.Duration
}

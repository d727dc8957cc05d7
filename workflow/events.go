// ABOUTME: Lifecycle events emitted by the pipeline runner during a session.
// ABOUTME: Callers wire an EventFunc to observe step progress without coupling to the runner.
package workflow

import "time"

// EventType identifies the kind of pipeline lifecycle event.
type EventType string

const (
	EventPipelineStarted   EventType = "pipeline.started"
	EventPipelineCompleted EventType = "pipeline.completed"
	EventPipelineFailed    EventType = "pipeline.failed"
	EventStepStarted       EventType = "step.started"
	EventStepCompleted     EventType = "step.completed"
	EventStepSkipped       EventType = "step.skipped"
	EventStepFailed        EventType = "step.failed"
	EventStateSaved        EventType = "state.saved"
)

// Event is one lifecycle event from a pipeline run.
type Event struct {
	Type      EventType
	Step      string
	Data      map[string]any
	Timestamp time.Time
}

// EventFunc receives pipeline events. Implementations must be fast; the
// runner calls them synchronously between steps.
type EventFunc func(Event)

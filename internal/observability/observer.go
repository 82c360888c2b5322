// Package observability carries engine events to loggers, the terminal
// dashboard and Prometheus metrics.
package observability

import (
	"fmt"
	"time"
)

// Observer receives structured events from the engine.
type Observer interface {
	// Printf writes a free-form message.
	Printf(format string, v ...any)

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured engine event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "refresh", "apply")
	Message   string            // Human-readable message
	Resource  string            // Instance address if applicable
	Action    string            // Planned action (create, update, ...) if applicable
	Duration  time.Duration     // Elapsed time for completion events
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of engine event.
type EventType string

const (
	// EventPhaseStarted indicates a phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceRefreshed indicates an instance was read from its provider.
	EventResourceRefreshed EventType = "resource.refreshed"
	// EventResourceDrifted indicates an instance disappeared outside converge.
	EventResourceDrifted EventType = "resource.drifted"
	// EventResourceCreating indicates a resource is being created.
	EventResourceCreating EventType = "resource.creating"
	// EventResourceCreated indicates a resource was created successfully.
	EventResourceCreated EventType = "resource.created"
	// EventResourceUpdating indicates a resource is being updated in place.
	EventResourceUpdating EventType = "resource.updating"
	// EventResourceUpdated indicates a resource was updated successfully.
	EventResourceUpdated EventType = "resource.updated"
	// EventResourceDeleting indicates a resource is being deleted.
	EventResourceDeleting EventType = "resource.deleting"
	// EventResourceDeleted indicates a resource was deleted successfully.
	EventResourceDeleted EventType = "resource.deleted"
	// EventResourceFailed indicates a resource operation failed.
	EventResourceFailed EventType = "resource.failed"
	// EventResourceSkipped indicates an operation did not run because a
	// dependency failed.
	EventResourceSkipped EventType = "resource.skipped"
	// EventResourceRetry indicates a throttled call will be retried.
	EventResourceRetry EventType = "resource.retry"

	// EventValidationWarning indicates a validation warning.
	EventValidationWarning EventType = "validation.warning"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// IsTerminal reports whether the event ends an operation on a resource.
func (t EventType) IsTerminal() bool {
	switch t {
	case EventResourceCreated, EventResourceUpdated, EventResourceDeleted, EventResourceFailed, EventResourceSkipped:
		return true
	}
	return false
}

func mergeFields(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// stamp fills in the timestamp and context fields of an event.
func stamp(event Event, contextFields map[string]string) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if len(contextFields) > 0 {
		fields := mergeFields(contextFields, nil)
		for k, v := range event.Fields {
			fields[k] = v
		}
		event.Fields = fields
	}
	return event
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:     EventPhaseCompleted,
		Phase:    phase,
		Duration: duration,
		Message:  fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogResourceStarted logs the start of an operation on an instance.
func LogResourceStarted(observer Observer, phase string, typ EventType, address, action string) {
	observer.Event(Event{
		Type:     typ,
		Phase:    phase,
		Resource: address,
		Action:   action,
		Message:  string(typ[len("resource."):]),
	})
}

// LogResourceDone logs the successful end of an operation on an instance.
func LogResourceDone(observer Observer, phase string, typ EventType, address, action, id string, duration time.Duration) {
	observer.Event(Event{
		Type:     typ,
		Phase:    phase,
		Resource: address,
		Action:   action,
		Duration: duration,
		Message:  fmt.Sprintf("%s after %v", typ[len("resource."):], duration.Round(time.Millisecond)),
		Fields: map[string]string{
			"id": id,
		},
	})
}

// LogResourceFailed logs a failed operation on an instance.
func LogResourceFailed(observer Observer, phase, address, action string, err error, duration time.Duration) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Phase:    phase,
		Resource: address,
		Action:   action,
		Duration: duration,
		Message:  fmt.Sprintf("failed: %v", err),
	})
}

// LogResourceSkipped logs an operation skipped because of cause.
func LogResourceSkipped(observer Observer, phase, address, action, cause string) {
	msg := "skipped: apply interrupted"
	if cause != "" {
		msg = fmt.Sprintf("skipped: dependency %s failed", cause)
	}
	observer.Event(Event{
		Type:     EventResourceSkipped,
		Phase:    phase,
		Resource: address,
		Action:   action,
		Message:  msg,
	})
}

// LogResourceRetry logs a throttled call about to be retried.
func LogResourceRetry(observer Observer, phase, address string, attempt int, err error, delay time.Duration) {
	observer.Event(Event{
		Type:     EventResourceRetry,
		Phase:    phase,
		Resource: address,
		Message:  fmt.Sprintf("throttled, retry %d in %v: %v", attempt, delay, err),
	})
}

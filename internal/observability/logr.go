package observability

import (
	"fmt"

	"github.com/go-logr/logr"
)

// LogrObserver adapts a logr.Logger, for embedding the engine in programs
// that already log through logr.
type LogrObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewLogrObserver wraps log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{log: log}
}

// Printf implements Observer.
func (o *LogrObserver) Printf(format string, v ...any) {
	o.log.Info(fmt.Sprintf(format, v...), o.keysAndValues(nil)...)
}

// Event implements Observer.
func (o *LogrObserver) Event(event Event) {
	event = stamp(event, nil)
	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	if event.Action != "" {
		kv = append(kv, "action", event.Action)
	}
	kv = append(kv, o.keysAndValues(event.Fields)...)

	switch event.Type {
	case EventPhaseFailed, EventResourceFailed:
		o.log.Error(nil, event.Message, kv...)
	case EventResourceRefreshed, EventProgress:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// Progress implements Observer.
func (o *LogrObserver) Progress(phase string, current, total int) {
	o.log.V(1).Info("progress", "phase", phase, "current", current, "total", total)
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	return &LogrObserver{log: o.log, contextFields: mergeFields(o.contextFields, fields)}
}

func (o *LogrObserver) keysAndValues(extra map[string]string) []any {
	fields := mergeFields(o.contextFields, extra)
	kv := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}

package observability

import (
	"fmt"
	"sync"
)

// Multi fans every call out to several observers.
type Multi []Observer

// Printf implements Observer.
func (m Multi) Printf(format string, v ...any) {
	for _, o := range m {
		o.Printf(format, v...)
	}
}

// Event implements Observer.
func (m Multi) Event(event Event) {
	for _, o := range m {
		o.Event(event)
	}
}

// Progress implements Observer.
func (m Multi) Progress(phase string, current, total int) {
	for _, o := range m {
		o.Progress(phase, current, total)
	}
}

// WithFields implements Observer.
func (m Multi) WithFields(fields map[string]string) Observer {
	out := make(Multi, len(m))
	for i, o := range m {
		out[i] = o.WithFields(fields)
	}
	return out
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	fields map[string]string
	parent *Recorder
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) root() *Recorder {
	if r.parent != nil {
		return r.parent
	}
	return r
}

// Printf implements Observer.
func (r *Recorder) Printf(format string, v ...any) {
	r.Event(Event{Type: EventProgress, Message: fmt.Sprintf(format, v...)})
}

// Event implements Observer.
func (r *Recorder) Event(event Event) {
	root := r.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.events = append(root.events, stamp(event, r.fields))
}

// Progress implements Observer.
func (r *Recorder) Progress(phase string, current, total int) {
	r.Event(Event{Type: EventProgress, Phase: phase, Message: fmt.Sprintf("%d/%d", current, total)})
}

// WithFields implements Observer.
func (r *Recorder) WithFields(fields map[string]string) Observer {
	return &Recorder{fields: mergeFields(r.fields, fields), parent: r.root()}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	root := r.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	return append([]Event(nil), root.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

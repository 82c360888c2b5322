package observability

import (
	"fmt"
	"sync"
)

// ChannelObserver forwards events to a channel, feeding the apply
// dashboard. Sends block, so the consumer must keep reading until Close.
type ChannelObserver struct {
	ch            chan Event
	contextFields map[string]string
	closed        *closeState
}

type closeState struct {
	mu     sync.RWMutex
	closed bool
}

// NewChannelObserver creates an observer with a buffered channel.
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{ch: make(chan Event, buffer), closed: &closeState{}}
}

// Events returns the receive side.
func (o *ChannelObserver) Events() <-chan Event { return o.ch }

// Close closes the channel. Events sent afterwards are dropped.
func (o *ChannelObserver) Close() {
	o.closed.mu.Lock()
	defer o.closed.mu.Unlock()
	if !o.closed.closed {
		o.closed.closed = true
		close(o.ch)
	}
}

func (o *ChannelObserver) send(e Event) {
	o.closed.mu.RLock()
	defer o.closed.mu.RUnlock()
	if o.closed.closed {
		return
	}
	o.ch <- e
}

// Printf implements Observer.
func (o *ChannelObserver) Printf(format string, v ...any) {
	o.send(stamp(Event{Type: EventProgress, Message: fmt.Sprintf(format, v...)}, o.contextFields))
}

// Event implements Observer.
func (o *ChannelObserver) Event(event Event) {
	o.send(stamp(event, o.contextFields))
}

// Progress implements Observer.
func (o *ChannelObserver) Progress(phase string, current, total int) {
	o.send(stamp(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: fmt.Sprintf("%d/%d", current, total),
		Fields:  map[string]string{"current": fmt.Sprint(current), "total": fmt.Sprint(total)},
	}, o.contextFields))
}

// WithFields implements Observer.
func (o *ChannelObserver) WithFields(fields map[string]string) Observer {
	return &ChannelObserver{ch: o.ch, contextFields: mergeFields(o.contextFields, fields), closed: o.closed}
}

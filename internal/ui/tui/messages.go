// Package tui provides a Bubble Tea dashboard for apply and destroy runs.
package tui

import "github.com/imamik/converge/internal/observability"

// EventMsg carries one engine event.
type EventMsg struct {
	Event observability.Event
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// ErrMsg carries the error the run ended with.
type ErrMsg struct{ Err error }

// DoneMsg signals that the run completed.
type DoneMsg struct{}

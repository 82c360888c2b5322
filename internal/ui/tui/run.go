package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/converge/internal/observability"
)

// eventBuffer is the channel capacity between the engine and the program.
const eventBuffer = 64

// Run shows the dashboard while run executes. run reports through the
// observer it is given. Quitting the dashboard cancels run's context and
// waits for it to return, so in-flight operations still reach state.
func Run(
	ctx context.Context,
	stackName, command string,
	run func(ctx context.Context, observer observability.Observer) error,
	opts ...tea.ProgramOption,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(stackName, command)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	events := observability.NewChannelObserver(eventBuffer)
	runDone := make(chan struct{})
	var runErr error

	go func() {
		defer close(runDone)
		runErr = run(ctx, events)
		events.Close()
	}()

	// Forward events in order, then report the outcome.
	go func() {
		for e := range events.Events() {
			p.Send(EventMsg{Event: e})
		}
		<-runDone
		if runErr != nil {
			p.Send(ErrMsg{Err: runErr})
			return
		}
		p.Send(DoneMsg{})
	}()

	finalModel, err := p.Run()
	cancel()
	<-runDone
	if runErr != nil {
		return runErr
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if fm, ok := finalModel.(Model); ok && fm.Err != nil {
		return fm.Err
	}
	return nil
}

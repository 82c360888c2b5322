package tui

import (
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/converge/internal/observability"
)

// applyPhase is the engine phase that walks the change graph, for both
// apply and destroy.
const applyPhase = "apply"

// Status is the state of one operation row.
type Status int

// Operation statuses.
const (
	StatusRunning Status = iota
	StatusDone
	StatusFailed
	StatusSkipped
)

// Operation is one provider operation on an instance.
type Operation struct {
	Address  string
	Verb     string // create, update, delete
	Status   Status
	Started  time.Time
	Duration time.Duration
	Message  string
}

// Model is the Bubble Tea model for the apply dashboard.
type Model struct {
	StackName string
	Command   string // "apply", "destroy"

	Phase      string
	Operations []Operation
	Completed  int
	Total      int
	Retries    int
	Errors     []string

	EstimatedRemaining time.Duration
	StartTime          time.Time

	// Animation
	SpinnerFrame int

	// UI state
	Width  int
	Height int
	Err    error
	Done   bool

	// Quit is set when the user leaves before the run finished.
	Quit bool
}

// NewModel creates a dashboard model.
func NewModel(stackName, command string) Model {
	return Model{
		StackName: stackName,
		Command:   command,
		StartTime: time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case EventMsg:
		m.apply(msg.Event)

	case TickMsg:
		m.SpinnerFrame++
		m.EstimatedRemaining = estimateRemaining(time.Since(m.StartTime), m.Completed, m.Total)
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		m.EstimatedRemaining = 0
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) apply(e observability.Event) {
	switch e.Type {
	case observability.EventPhaseStarted:
		m.Phase = e.Phase

	case observability.EventPhaseFailed:
		m.Errors = append(m.Errors, e.Phase+": "+e.Message)

	case observability.EventProgress:
		if e.Phase != applyPhase {
			return
		}
		if cur, err := strconv.Atoi(e.Fields["current"]); err == nil {
			m.Completed = cur
		}
		if total, err := strconv.Atoi(e.Fields["total"]); err == nil {
			m.Total = total
		}

	case observability.EventResourceCreating, observability.EventResourceUpdating, observability.EventResourceDeleting:
		m.Operations = append(m.Operations, Operation{
			Address: e.Resource,
			Verb:    verb(e.Type),
			Status:  StatusRunning,
			Started: e.Timestamp,
		})

	case observability.EventResourceCreated, observability.EventResourceUpdated, observability.EventResourceDeleted:
		op := m.running(e.Resource, verb(e.Type))
		op.Status = StatusDone
		op.Duration = e.Duration

	case observability.EventResourceFailed:
		op := m.running(e.Resource, "")
		op.Status = StatusFailed
		op.Duration = e.Duration
		op.Message = e.Message
		m.Errors = append(m.Errors, e.Resource+": "+e.Message)

	case observability.EventResourceSkipped:
		m.Operations = append(m.Operations, Operation{
			Address: e.Resource,
			Verb:    e.Action,
			Status:  StatusSkipped,
			Message: e.Message,
		})

	case observability.EventResourceRetry:
		m.Retries++
		if op := m.find(e.Resource); op != nil {
			op.Message = e.Message
		}
	}
}

// running returns the running row for address, adding one if the start
// event was missed. An empty verb matches any row.
func (m *Model) running(address, verb string) *Operation {
	for i := len(m.Operations) - 1; i >= 0; i-- {
		op := &m.Operations[i]
		if op.Address == address && op.Status == StatusRunning && (verb == "" || op.Verb == verb) {
			return op
		}
	}
	m.Operations = append(m.Operations, Operation{Address: address, Verb: verb, Status: StatusRunning})
	return &m.Operations[len(m.Operations)-1]
}

func (m *Model) find(address string) *Operation {
	for i := len(m.Operations) - 1; i >= 0; i-- {
		if m.Operations[i].Address == address {
			return &m.Operations[i]
		}
	}
	return nil
}

func verb(t observability.EventType) string {
	switch t {
	case observability.EventResourceCreating, observability.EventResourceCreated:
		return "create"
	case observability.EventResourceUpdating, observability.EventResourceUpdated:
		return "update"
	case observability.EventResourceDeleting, observability.EventResourceDeleted:
		return "delete"
	}
	return ""
}

// estimateRemaining extrapolates the mean time per completed operation.
func estimateRemaining(elapsed time.Duration, completed, total int) time.Duration {
	if completed <= 0 || total <= completed {
		return 0
	}
	per := elapsed / time.Duration(completed)
	return per * time.Duration(total-completed)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}

package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imamik/converge/internal/config"
)

// NewLogger builds the process logger: a console writer with RFC3339
// timestamps, or JSON lines when format is "json".
func NewLogger(w io.Writer, settings config.LogSettings, noColor bool) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if settings.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(settings.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", settings.Level, err)
		}
		level = parsed
	}

	out := w
	if settings.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "converge").Logger(), nil
}

// ConsoleObserver implements Observer on a zerolog logger.
type ConsoleObserver struct {
	logger        zerolog.Logger
	contextFields map[string]string
}

// NewConsoleObserver creates an observer writing to logger.
func NewConsoleObserver(logger zerolog.Logger) *ConsoleObserver {
	return &ConsoleObserver{
		logger:        logger,
		contextFields: make(map[string]string),
	}
}

// Printf implements Observer.
func (o *ConsoleObserver) Printf(format string, v ...any) {
	o.logger.Info().Fields(o.contextFields).Msgf(format, v...)
}

// Event implements Observer.
func (o *ConsoleObserver) Event(event Event) {
	event = stamp(event, o.contextFields)

	var e *zerolog.Event
	switch event.Type {
	case EventPhaseFailed, EventResourceFailed:
		e = o.logger.Error()
	case EventResourceSkipped, EventResourceDrifted, EventValidationWarning, EventResourceRetry:
		e = o.logger.Warn()
	case EventResourceRefreshed, EventProgress:
		e = o.logger.Debug()
	default:
		e = o.logger.Info()
	}

	e = e.Str("event", string(event.Type))
	if event.Phase != "" {
		e = e.Str("phase", event.Phase)
	}
	if event.Resource != "" {
		e = e.Str("resource", event.Resource)
	}
	if event.Action != "" {
		e = e.Str("action", event.Action)
	}
	if event.Duration > 0 {
		e = e.Dur("elapsed", event.Duration)
	}
	for k, v := range event.Fields {
		if v != "" {
			e = e.Str(k, v)
		}
	}
	e.Msg(event.Message)
}

// Progress implements Observer.
func (o *ConsoleObserver) Progress(phase string, current, total int) {
	e := o.logger.Info().Str("phase", phase).Int("current", current).Int("total", total)
	if total > 0 {
		e = e.Int("percent", (current*100)/total)
	}
	e.Msg("progress")
}

// WithFields implements Observer.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	return &ConsoleObserver{
		logger:        o.logger,
		contextFields: mergeFields(o.contextFields, fields),
	}
}

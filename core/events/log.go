package events

import (
	"log/slog"

	"dscvault/core/types"
)

// renderable is satisfied by event payloads that can render themselves into
// the generic attribute form.
type renderable interface {
	Event() *types.Event
}

// LogEmitter publishes events as structured log lines, one per event, with
// the rendered attributes flattened into the record.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps the logger in an emitter. A nil logger falls back to
// the process default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger.With("component", "events")}
}

// Emit implements the Emitter interface.
func (l *LogEmitter) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	rendered, ok := evt.(renderable)
	if !ok {
		l.logger.Info("event", "type", evt.EventType())
		return
	}
	payload := rendered.Event()
	args := make([]any, 0, 2+2*len(payload.Attributes))
	args = append(args, "type", payload.Type)
	for key, value := range payload.Attributes {
		args = append(args, key, value)
	}
	l.logger.Info("event", args...)
}

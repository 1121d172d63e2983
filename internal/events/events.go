// Package events records the audit trail of a sync run. The sink is
// constructed once per run and handed to the pipeline explicitly; there is
// no package-level singleton to initialize.
package events

import (
	"context"
	"log/slog"
)

const eventPrefix = "new_employees_sync."

// Sink emits structured audit events for one run. A nil Sink discards
// everything, which keeps tests quiet without stubbing.
type Sink struct {
	log    *slog.Logger
	client string
	source string
}

// NewSink wraps logger with the run's client and source identity attached
// to every event.
func NewSink(logger *slog.Logger, clientName, sourceName string) *Sink {
	return &Sink{log: logger, client: clientName, source: sourceName}
}

func (s *Sink) emit(level slog.Level, eventType, message string, attrs []any) {
	if s == nil || s.log == nil {
		return
	}
	base := []any{
		"event", eventPrefix + eventType,
		"client", s.client,
		"source", s.source,
	}
	s.log.Log(context.Background(), level, message, append(base, attrs...)...)
}

func (s *Sink) Info(eventType, message string, attrs ...any) {
	s.emit(slog.LevelInfo, eventType, message, attrs)
}

func (s *Sink) Error(eventType, message string, attrs ...any) {
	s.emit(slog.LevelError, eventType, message, attrs)
}

// Success marks terminal happy-path events. It logs at info level with an
// explicit outcome attribute so downstream consumers can filter on it.
func (s *Sink) Success(eventType, message string, attrs ...any) {
	s.emit(slog.LevelInfo, eventType, message, append([]any{"outcome", "success"}, attrs...))
}

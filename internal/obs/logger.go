// Package obs defines the Logger and Metrics ports every component takes
// as a constructor dependency, plus zerolog/otel-backed implementations
// and test doubles (grounded on internal/rag/obs and internal/rag/service
// of the teacher repo).
package obs

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logging port. Domain packages depend on this
// interface, never on zerolog directly, so tests can swap in a no-op or
// recording implementation.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
}

// ZerologLogger adapts zerolog.Logger to the Logger port.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger builds a Logger writing to stderr at the given level
// ("debug", "info", "warn", "error"); unrecognized levels default to info.
func NewZerologLogger(level string) *ZerologLogger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	return &ZerologLogger{log: l}
}

func withFields(e *zerolog.Event, fields map[string]any) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

func (l *ZerologLogger) Info(msg string, fields map[string]any) {
	withFields(l.log.Info(), fields).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, fields map[string]any) {
	withFields(l.log.Error(), fields).Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, fields map[string]any) {
	withFields(l.log.Debug(), fields).Msg(msg)
}

func (l *ZerologLogger) Warn(msg string, fields map[string]any) {
	withFields(l.log.Warn(), fields).Msg(msg)
}

// NoopLogger discards everything; used in tests that don't care about
// log output.
type NoopLogger struct{}

func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}
func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Warn(string, map[string]any)  {}

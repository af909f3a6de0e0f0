package stagegl

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards all records. Enabled reports
// false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the package logger. By default stagegl produces no
// log output. Pass nil to restore the silent default.
//
// Log levels used by stagegl:
//   - [slog.LevelDebug]: batch flush reasons and per-frame stats
//   - [slog.LevelInfo]: device capabilities and sampler counts
//   - [slog.LevelWarn]: recovered resource failures (placeholder textures,
//     shader degradation, uncached fallbacks)
//
// Renderers created after SetLogger pick up the new logger unless
// Options.Logger is set.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger. Backend packages call this to
// share the same configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

package hannou

import "log/slog"

// Logger receives diagnostics from a Context. Key/value pairs follow the
// log/slog convention.
type Logger interface {
	Info(msg string, keyValues ...any)
	Warn(msg string, keyValues ...any)
	Error(msg string, keyValues ...any)
	Debug(msg string, keyValues ...any)
}

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger adapts a *slog.Logger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

func (a *slogLogger) Info(msg string, keyValues ...any) {
	a.logger.Info(msg, keyValues...)
}

func (a *slogLogger) Warn(msg string, keyValues ...any) {
	a.logger.Warn(msg, keyValues...)
}

func (a *slogLogger) Error(msg string, keyValues ...any) {
	a.logger.Error(msg, keyValues...)
}

func (a *slogLogger) Debug(msg string, keyValues ...any) {
	a.logger.Debug(msg, keyValues...)
}

package hannou

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
)

// --- Test Components ---
type Position struct{ X, Y float32 }
type Velocity struct{ VX, VY float32 }
type Health struct{ Current, Max int }
type Name struct{ Value string }
type Tag struct{}

func (p *Position) Reset() { *p = Position{} }

const (
	kindPosition = iota
	kindVelocity
	kindHealth
	kindName
	kindTag
)

func testInfo() ContextInfo {
	var info ContextInfo
	info.Name = "test"
	RegisterComponent[*Position](&info)
	RegisterComponent[*Velocity](&info)
	RegisterComponent[*Health](&info)
	RegisterComponent[*Name](&info)
	RegisterComponent[Tag](&info)
	return info
}

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) log(level, msg string, kv []any) {
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *recordingLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.log("WARN", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv) }
func (l *recordingLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv) }

func discardLogger() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setupContext(_ testing.TB, opts ...Option) *Context {
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return NewContext(testInfo(), opts...)
}

func mustAdd(t testing.TB, e *Entity, kind int, c Component) {
	t.Helper()
	if err := e.AddComponent(kind, c); err != nil {
		t.Fatalf("AddComponent(%d): %v", kind, err)
	}
}

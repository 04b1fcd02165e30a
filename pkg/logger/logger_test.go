package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{" DEBUG ", DebugLevel},
		{"unknown", InfoLevel}, // default
		{"", InfoLevel},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "debug"},
		{InfoLevel, "info"},
		{WarnLevel, "warn"},
		{ErrorLevel, "error"},
		{Level(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.level.String(); result != tt.expected {
				t.Errorf("Level.String() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func newBufferLogger(level Level) (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := New(&Config{Level: level, Format: "json", Writer: &buf}).(*SlogLogger)
	return log, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	if New(nil) == nil {
		t.Fatal("expected non-nil logger")
	}

	log, buf := newBufferLogger(InfoLevel)
	log.Info("willingness evaluated", "conversation_id", "c1", "score", 0.9)

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["message"] != "willingness evaluated" {
		t.Errorf("expected message key, got %v", lines[0])
	}
	if lines[0]["conversation_id"] != "c1" {
		t.Errorf("expected conversation_id attribute, got %v", lines[0])
	}
}

func TestSlogLogger_Level(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug should be filtered at info level, got %s", buf.String())
	}

	log.SetLevel(DebugLevel)
	if log.GetLevel() != DebugLevel {
		t.Errorf("GetLevel() = %v, want debug", log.GetLevel())
	}
	log.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("expected debug record after SetLevel")
	}

	log.SetLevel(ErrorLevel)
	if log.GetLevel() != ErrorLevel {
		t.Errorf("GetLevel() = %v, want error", log.GetLevel())
	}
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	log.With("component", "decay").Info("tick")
	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["component"] != "decay" {
		t.Errorf("expected component attribute, got %v", lines)
	}
}

func TestSlogLogger_WithContext(t *testing.T) {
	log, _ := newBufferLogger(InfoLevel)
	ctx := log.WithContext(context.Background())

	if FromContext(ctx) != Logger(log) {
		t.Error("expected logger from context")
	}
}

func TestFromContext_NoLogger(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected global logger when no logger in context")
	}
}

func TestContextLoggingAddsTraceIDs(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	log.InfoContext(ctx, "traced")
	span.End()

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("expected trace_id, got %v", lines[0])
	}
	if lines[0]["span_id"] == nil {
		t.Errorf("expected span_id, got %v", lines[0])
	}

	buf.Reset()
	log.InfoContext(context.Background(), "untraced")
	if strings.Contains(buf.String(), "trace_id") {
		t.Error("did not expect trace_id without a span")
	}
}

func TestNew_ServiceAndDerivedTraceFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Format: "json", Writer: &buf, Service: "willingd"})

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "willing.evaluate")
	log.With("component", "willing").InfoContext(ctx, "decision", "conversation_id", "c1")
	span.End()

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line["service"] != "willingd" || line["component"] != "willing" {
		t.Errorf("expected service and component attributes, got %v", line)
	}
	if line["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("derived logger lost trace_id: %v", line)
	}
	if line["level"] != "INFO" {
		t.Errorf("expected INFO level, got %v", line["level"])
	}
}

func TestSlogLevelMapping(t *testing.T) {
	for _, l := range []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel} {
		if got := ParseLevel(l.String()); got != l {
			t.Errorf("ParseLevel(%q) = %v, want %v", l.String(), got, l)
		}
	}
	if slogLevel(Level(-1)).String() != "INFO" {
		t.Error("out of range levels should map to info")
	}
}

func TestGlobal(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	if prev == nil {
		t.Fatal("expected non-nil global logger")
	}

	log, buf := newBufferLogger(InfoLevel)
	SetGlobal(log)
	if Global() != Logger(log) {
		t.Fatal("SetGlobal should replace the global logger")
	}

	Info("from global", "k", "v")
	Warn("warned")
	Error("failed")
	Debug("dropped")
	if got := len(decodeLines(t, buf)); got != 3 {
		t.Errorf("expected 3 records, got %d", got)
	}

	SetLevel(DebugLevel)
	DebugContext(context.Background(), "kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("expected SetLevel to reach the global logger")
	}

	SetGlobal(nil)
	if Global() != Logger(log) {
		t.Error("SetGlobal(nil) must be ignored")
	}
}

func TestSlogLogger_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "willing.log")
	log := New(&Config{Level: InfoLevel, Format: "text", Output: path})

	log.Info("to file")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("expected record in file, got %q", data)
	}

	stdout := New(&Config{Output: "stdout"})
	if err := stdout.Close(); err != nil {
		t.Errorf("closing a stdout logger should be a no-op: %v", err)
	}
}

func TestGetWriter(t *testing.T) {
	if w, c := getWriter("stdout"); w != os.Stdout || c != nil {
		t.Error("expected stdout without closer")
	}
	if w, c := getWriter("stderr"); w != os.Stderr || c != nil {
		t.Error("expected stderr without closer")
	}
	if w, _ := getWriter(""); w != os.Stdout {
		t.Error("expected stdout for empty output")
	}
	if w, c := getWriter(filepath.Join(t.TempDir(), "missing", "dir", "x.log")); w != os.Stdout || c != nil {
		t.Error("expected stdout fallback for unwritable path")
	}
}

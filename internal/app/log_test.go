package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		session string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			session: "20240615T143045Z-1a2b3c4d",
			level:   slog.LevelInfo,
			message: "domain created",
			want:    "2024-06-15T14:30:45Z\tINFO\t20240615T143045Z-1a2b3c4d\tdomain created\n",
		},
		{
			name:    "warning",
			session: "s-2",
			level:   slog.LevelWarn,
			message: "save rejected",
			want:    "2024-06-15T14:30:45Z\tWARN\ts-2\tsave rejected\n",
		},
		{
			name:    "with record attrs",
			session: "s-3",
			level:   slog.LevelInfo,
			message: "item saved",
			attrs:   []slog.Attr{slog.String("type", "project"), slog.String("domain", "CAS")},
			want:    "2024-06-15T14:30:45Z\tINFO\ts-3\titem saved\ttype=project\tdomain=CAS\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &logHandler{w: &buf, session: tt.session}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestLogHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &logHandler{w: &buf, session: "s-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("backend", "document")}).(*logHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "item saved", 0)
	r.AddAttrs(slog.String("uuid", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "backend=document") {
		t.Errorf("expected pre-set attr backend=document, got: %q", got)
	}
	if !strings.Contains(got, "uuid=abc") {
		t.Errorf("expected record attr uuid=abc, got: %q", got)
	}
}

func TestLogHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	h := &logHandler{session: "s-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*logHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestLogHandler_Enabled(t *testing.T) {
	tests := []struct {
		name  string
		min   slog.Level
		level slog.Level
		want  bool
	}{
		{"debug hidden at info", slog.LevelInfo, slog.LevelDebug, false},
		{"info shown at info", slog.LevelInfo, slog.LevelInfo, true},
		{"error shown at info", slog.LevelInfo, slog.LevelError, true},
		{"debug shown when verbose", slog.LevelDebug, slog.LevelDebug, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &logHandler{level: tt.min}
			if got := h.Enabled(context.Background(), tt.level); got != tt.want {
				t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-session", false)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "domain", "CAS")
	logger.Debug("hidden")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "\ttest-session\thello\tdomain=CAS") {
		t.Errorf("log file = %q, want the info record", got)
	}
	if strings.Contains(got, "hidden") {
		t.Errorf("log file = %q, want no debug record", got)
	}
}

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

func TestDocHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "20240615T143045Z",
			level:   slog.LevelInfo,
			message: "document published",
			want:    "2024-06-15T14:30:45Z\tINFO\t20240615T143045Z\tdocument published\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "checking mirror",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tchecking mirror\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelWarn,
			message: "orphaned public file",
			attrs:   []slog.Attr{slog.String("path", "guides/faq/old.md"), slog.Int("count", 2)},
			want:    "2024-06-15T14:30:45Z\tWARN\top-789\torphaned public file\tpath=guides/faq/old.md\tcount=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &docHandler{w: &buf, opID: tt.opID, min: slog.LevelDebug}

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

func TestDocHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &docHandler{w: &buf, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "sync")}).(*docHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "republish", 0)
	r.AddAttrs(slog.String("document", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=sync") {
		t.Errorf("expected pre-set attr component=sync, got: %q", got)
	}
	if !strings.Contains(got, "document=abc") {
		t.Errorf("expected record attr document=abc, got: %q", got)
	}
}

func TestDocHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &docHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*docHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestDocHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&docHandler{w: &buf, opID: "op-1"})

	logger.WithGroup("sync").Info("done", "checked", 3)

	if got := buf.String(); !strings.Contains(got, "\tsync.checked=3") {
		t.Errorf("expected grouped key sync.checked=3, got: %q", got)
	}
}

func TestDocHandler_Enabled(t *testing.T) {
	h := &docHandler{min: slog.LevelWarn}
	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, false},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestTeeHandler_FiltersPerHandler(t *testing.T) {
	var all, warn bytes.Buffer
	logger := slog.New(teeHandler{
		&docHandler{w: &all, opID: "op", min: slog.LevelDebug},
		&docHandler{w: &warn, opID: "op", min: slog.LevelWarn},
	})

	logger.Info("document approved")
	logger.Warn("review escalated")

	if got := strings.Count(all.String(), "\n"); got != 2 {
		t.Errorf("debug handler lines = %d, want 2", got)
	}
	if got := warn.String(); strings.Contains(got, "approved") || !strings.Contains(got, "escalated") {
		t.Errorf("warn handler output = %q, want only the warning", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "debug", want: slog.LevelDebug},
		{in: "WARN", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-op", slog.LevelError)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("document added", "document", "d-1")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\tdocument added\tdocument=d-1") {
		t.Errorf("log file = %q, want the info record", data)
	}
}

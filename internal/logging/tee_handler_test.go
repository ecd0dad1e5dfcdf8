package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(nil, inner); h != inner {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsLevels(t *testing.T) {
	var info, warn bytes.Buffer
	h := newTeeHandler(
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be disabled")
	}

	logger := slog.New(h).With(slog.String("key", "value"))
	logger.Info("info message")

	if !bytes.Contains(info.Bytes(), []byte(`"key":"value"`)) {
		t.Fatalf("expected attrs in info output, got %q", info.String())
	}
	if warn.Len() != 0 {
		t.Fatalf("expected warn handler to skip info, got %q", warn.String())
	}
}

package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cdgrab/internal/config"
	"cdgrab/internal/logging"
	"cdgrab/internal/services"
)

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Dir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("file message", logging.String("k", "v"))

	content, err := os.ReadFile(filepath.Join(cfg.Logging.Dir, "cdgrab.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", content, err)
	}
	if entry["msg"] != "file message" || entry["k"] != "v" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "subject.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "1a2b3c4d-0000-0000-0000-000000000000")
	ctx = services.WithPhase(ctx, "download")
	logger := logging.WithContext(ctx, logging.NewComponentLogger(base, "workflow"))
	logger.Info("phase started", logging.String("target_dir", "/tmp/out dir"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"INFO workflow: phase started", "[job 1a2b3c4d · download]", `target_dir="/tmp/out dir"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "invalid", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") || !strings.Contains(string(content), "shown") {
		t.Fatalf("expected info threshold, got %q", content)
	}
}

func TestContextFields(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
	ctx := services.WithJobID(context.Background(), "job")
	ctx = services.WithPhase(ctx, "verify-downloader")
	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", fields)
	}
	if fields[0].Key != logging.FieldJobID || fields[0].Value.String() != "job" {
		t.Fatalf("unexpected job field: %v", fields[0])
	}
	if fields[1].Key != logging.FieldPhase || fields[1].Value.String() != "verify-downloader" {
		t.Fatalf("unexpected phase field: %v", fields[1])
	}
}

package procexec_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cdgrab/internal/procexec"
	"cdgrab/internal/testsupport"
)

func spawnScript(t *testing.T, body string, capture procexec.Capture, args ...string) *procexec.Handle {
	t.Helper()
	testsupport.RequireShell(t)
	path := filepath.Join(t.TempDir(), "tool")
	testsupport.WriteScript(t, path, body)

	h, err := procexec.NewExecRunner(nil).Spawn(context.Background(), procexec.Spec{Path: path, Args: args, Capture: capture})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestSpawnCapturesStdout(t *testing.T) {
	h := spawnScript(t, `echo out; echo err >&2`, procexec.CaptureStdout)
	if h.Stderr != nil {
		t.Fatal("stderr must not be exposed when not captured")
	}
	if got := readAll(t, h.Stdout); got != "out\n" {
		t.Fatalf("unexpected stdout %q", got)
	}
	status, err := h.Wait()
	if err != nil || !status.Success() {
		t.Fatalf("Wait: %v %v", status, err)
	}
}

func TestSpawnCapturesBothConcurrently(t *testing.T) {
	h := spawnScript(t, `i=0; while [ $i -lt 200 ]; do echo "o$i"; echo "e$i" >&2; i=$((i+1)); done`, procexec.CaptureBoth)

	var wg sync.WaitGroup
	var stdout, stderr string
	wg.Add(2)
	go func() {
		defer wg.Done()
		data, _ := io.ReadAll(h.Stdout)
		stdout = string(data)
	}()
	go func() {
		defer wg.Done()
		data, _ := io.ReadAll(h.Stderr)
		stderr = string(data)
	}()
	status, err := h.Wait()
	wg.Wait()

	if err != nil || status.Code != 0 {
		t.Fatalf("Wait: %v %v", status, err)
	}
	if n := strings.Count(stdout, "\n"); n != 200 {
		t.Fatalf("expected 200 stdout lines, got %d", n)
	}
	if !strings.HasSuffix(stderr, "e199\n") {
		t.Fatalf("stderr truncated: %q", stderr[max(0, len(stderr)-20):])
	}
}

func TestWaitBeforeDrainKeepsOutput(t *testing.T) {
	h := spawnScript(t, `echo first; echo last`, procexec.CaptureStdout)
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := readAll(t, h.Stdout); got != "first\nlast\n" {
		t.Fatalf("output lost after Wait: %q", got)
	}
}

func TestWaitReportsNonZeroExitWithoutError(t *testing.T) {
	h := spawnScript(t, `exit 3`, procexec.CaptureStdout)
	_ = readAll(t, h.Stdout)
	status, err := h.Wait()
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if status.Code != 3 || status.Success() {
		t.Fatalf("unexpected status %+v", status)
	}
	again, err := h.Wait()
	if err != nil || again != status {
		t.Fatalf("Wait not idempotent: %+v %v", again, err)
	}
}

func TestSpawnPassesArgsVerbatimAndDir(t *testing.T) {
	testsupport.RequireShell(t)
	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "tool")
	testsupport.WriteScript(t, path, `pwd; for a in "$@"; do echo "[$a]"; done`)

	h, err := procexec.NewExecRunner(nil).Spawn(context.Background(), procexec.Spec{
		Path:    path,
		Args:    []string{"-o", "%(title)s.%(ext)s", "a b", "$HOME"},
		Dir:     dir,
		Capture: procexec.CaptureStdout,
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()
	out := readAll(t, h.Stdout)
	_, _ = h.Wait()

	resolved, _ := filepath.EvalSymlinks(dir)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if got, _ := filepath.EvalSymlinks(lines[0]); got != resolved {
		t.Fatalf("expected cwd %q, got %q", resolved, lines[0])
	}
	want := []string{"[-o]", "[%(title)s.%(ext)s]", "[a b]", "[$HOME]"}
	if strings.Join(lines[1:], ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected args %v", lines[1:])
	}
}

func TestSpawnNotFound(t *testing.T) {
	_, err := procexec.NewExecRunner(nil).Spawn(context.Background(), procexec.Spec{
		Path:    filepath.Join(t.TempDir(), "missing"),
		Capture: procexec.CaptureStdout,
	})
	var serr *procexec.SpawnError
	if !errors.As(err, &serr) || serr.Kind != procexec.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected wrapped ErrNotExist")
	}
}

func TestSpawnPermissionDenied(t *testing.T) {
	testsupport.RequireShell(t)
	if os.Geteuid() == 0 {
		t.Skip("root bypasses execute permission checks")
	}
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := procexec.NewExecRunner(nil).Spawn(context.Background(), procexec.Spec{Path: path, Capture: procexec.CaptureStdout})
	var serr *procexec.SpawnError
	if !errors.As(err, &serr) || serr.Kind != procexec.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestSpawnDirectoryIsPermissionDenied(t *testing.T) {
	_, err := procexec.NewExecRunner(nil).Spawn(context.Background(), procexec.Spec{Path: t.TempDir()})
	var serr *procexec.SpawnError
	if !errors.As(err, &serr) || serr.Kind != procexec.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestSpawnContextCancelKillsProcess(t *testing.T) {
	testsupport.RequireShell(t)
	path := filepath.Join(t.TempDir(), "tool")
	testsupport.WriteScript(t, path, `exec sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	h, err := procexec.NewExecRunner(nil).Spawn(ctx, procexec.Spec{Path: path, Capture: procexec.CaptureStdout})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	done := make(chan procexec.ExitStatus, 1)
	go func() {
		status, _ := h.Wait()
		done <- status
	}()
	cancel()
	select {
	case status := <-done:
		if status.Success() {
			t.Fatalf("expected killed process, got %+v", status)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("process not killed after cancel")
	}
}

func TestNewHandleClosesReaders(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer w.Close()
	h := procexec.NewHandle(42, r, nil, func() (procexec.ExitStatus, error) {
		return procexec.ExitStatus{Code: 1}, nil
	})
	if status, _ := h.Wait(); status.Code != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := r.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected read on closed pipe to fail")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDescribeQuotesArguments(t *testing.T) {
	got := procexec.Describe(procexec.Spec{
		Path: "/opt/bin/yt-dlp",
		Args: []string{"-o", "/music/%(title)s.%(ext)s", "https://example.test/watch?v=abc"},
	})
	want := "/opt/bin/yt-dlp -o '/music/%(title)s.%(ext)s' 'https://example.test/watch?v=abc'"
	if got != want {
		t.Fatalf("Describe = %q, want %q", got, want)
	}
}

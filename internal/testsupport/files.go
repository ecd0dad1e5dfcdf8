package testsupport

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	// DownloaderStub prints a version on stderr for --version, otherwise one
	// progress line on stdout.
	DownloaderStub = `if [ "$1" = "--version" ]; then
  echo "2024.03.10" >&2
  exit 0
fi
echo "[download] Destination: stub.m4a"
exit 0`

	// TranscoderStub prints a version banner on stderr.
	TranscoderStub = `echo "ffmpeg version 6.1-stub" >&2
exit 0`
)

// RequireShell skips tests that execute /bin/sh stubs on platforms without one.
func RequireShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a unix shell")
	}
}

// WriteScript writes an executable /bin/sh script with body at path.
func WriteScript(t testing.TB, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

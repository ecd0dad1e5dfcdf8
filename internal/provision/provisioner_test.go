package provision_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"cdgrab/internal/fileutil"
	"cdgrab/internal/provision"
	"cdgrab/internal/testsupport"
)

func newProvisioner(t *testing.T, opts ...provision.Option) (*provision.Provisioner, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "bin")
	payloads := fstest.MapFS{
		provision.Downloader.FileName(): {Data: []byte("#!/bin/sh\necho downloader\n")},
		provision.Transcoder.FileName(): {Data: []byte("#!/bin/sh\necho transcoder\n")},
	}
	p, err := provision.New(dir, append([]provision.Option{provision.WithPayloads(payloads)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, dir
}

func TestEnsureWritesExecutable(t *testing.T) {
	p, dir := newProvisioner(t)

	bin, err := p.Ensure(context.Background(), provision.Downloader)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if bin.Path != filepath.Join(dir, provision.Downloader.FileName()) {
		t.Fatalf("unexpected path %q", bin.Path)
	}
	if !bin.Rewritten {
		t.Fatal("expected first Ensure to write the file")
	}
	data, err := os.ReadFile(bin.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "#!/bin/sh\necho downloader\n" {
		t.Fatalf("unexpected content %q", data)
	}
	if want := fileutil.DigestBytes(data); bin.SHA256 != want.SHA256 || bin.Size != want.Size {
		t.Fatalf("digest mismatch: got %d/%s want %d/%s", bin.Size, bin.SHA256, want.Size, want.SHA256)
	}
	info, err := os.Stat(bin.Path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	testsupport.RequireShell(t)
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode 0755, got %v", info.Mode().Perm())
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	p, _ := newProvisioner(t)
	ctx := context.Background()

	first, err := p.Ensure(ctx, provision.Transcoder)
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	firstData, _ := os.ReadFile(first.Path)

	second, err := p.Ensure(ctx, provision.Transcoder)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	secondData, _ := os.ReadFile(second.Path)

	if first.Path != second.Path {
		t.Fatalf("paths differ: %q vs %q", first.Path, second.Path)
	}
	if !bytes.Equal(firstData, secondData) {
		t.Fatal("expected byte-identical files after repeated Ensure")
	}
	if !second.Rewritten {
		t.Fatal("expected unconditional overwrite without checksum skip")
	}
}

func TestEnsureRestoresModifiedFile(t *testing.T) {
	p, _ := newProvisioner(t)
	bin, err := p.Ensure(context.Background(), provision.Downloader)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := os.WriteFile(bin.Path, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := p.Ensure(context.Background(), provision.Downloader); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	data, _ := os.ReadFile(bin.Path)
	if string(data) != "#!/bin/sh\necho downloader\n" {
		t.Fatalf("expected payload restored, got %q", data)
	}
}

func TestEnsureChecksumSkip(t *testing.T) {
	p, _ := newProvisioner(t, provision.WithChecksumSkip(true))
	ctx := context.Background()

	if _, err := p.Ensure(ctx, provision.Downloader); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	bin, err := p.Ensure(ctx, provision.Downloader)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if bin.Rewritten {
		t.Fatal("expected matching file to be left in place")
	}
	if bin.SHA256 == "" {
		t.Fatal("expected digest on skipped write")
	}

	if err := os.WriteFile(bin.Path, []byte("stale"), 0o755); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	bin, err = p.Ensure(ctx, provision.Downloader)
	if err != nil {
		t.Fatalf("third Ensure: %v", err)
	}
	if !bin.Rewritten {
		t.Fatal("expected mismatched file to be rewritten")
	}
}

func TestEnsureDirectoryUnwritable(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "bin")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	p, err := provision.New(blocker, provision.WithPayloads(fstest.MapFS{
		provision.Downloader.FileName(): {Data: []byte("x")},
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Ensure(context.Background(), provision.Downloader)
	var perr *provision.ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	if perr.Kind != provision.DirectoryUnwritable {
		t.Fatalf("expected DirectoryUnwritable, got %v", perr.Kind)
	}
	if !errors.Is(err, &provision.ProvisionError{Kind: provision.DirectoryUnwritable}) {
		t.Fatal("expected errors.Is to match on kind")
	}
}

func TestEnsurePayloadMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bin")
	p, err := provision.New(dir, provision.WithPayloads(fstest.MapFS{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Ensure(context.Background(), provision.Transcoder)
	var perr *provision.ProvisionError
	if !errors.As(err, &perr) || perr.Kind != provision.PayloadMissing {
		t.Fatalf("expected PayloadMissing, got %v", err)
	}
	if perr.Tool != provision.Transcoder {
		t.Fatalf("expected transcoder tool, got %q", perr.Tool)
	}
	if _, statErr := os.Stat(filepath.Join(dir, provision.Transcoder.FileName())); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected no file written, stat err %v", statErr)
	}
}

func TestEnsureRejectsUnknownTool(t *testing.T) {
	p, _ := newProvisioner(t)
	if _, err := p.Ensure(context.Background(), provision.Tool("curl")); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestEnsureLockRespectsCancelledContext(t *testing.T) {
	p, dir := newProvisioner(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ensure(ctx, provision.Downloader)
	if !errors.Is(err, &provision.ProvisionError{Kind: provision.DirectoryUnwritable}) {
		t.Fatalf("expected DirectoryUnwritable, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestNewFromConfigUsesPayloadDir(t *testing.T) {
	testsupport.RequireShell(t)
	cfg := testsupport.NewConfig(t, testsupport.WithStubPayloads())

	p, err := provision.NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if p.Dir() != cfg.Provision.BinDir {
		t.Fatalf("expected dir %q, got %q", cfg.Provision.BinDir, p.Dir())
	}
	bin, err := p.Ensure(context.Background(), provision.Downloader)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	want, err := fileutil.DigestFile(filepath.Join(cfg.Provision.PayloadDir, "yt-dlp"))
	if err != nil {
		t.Fatalf("digest payload: %v", err)
	}
	if bin.SHA256 != want.SHA256 {
		t.Fatal("expected provisioned file to match payload dir copy")
	}
}

func TestEnsureLargePayload(t *testing.T) {
	src := filepath.Join(t.TempDir(), "payload")
	testsupport.WriteFile(t, filepath.Join(src, provision.Downloader.FileName()), 3<<20)

	p, err := provision.New(filepath.Join(t.TempDir(), "bin"), provision.WithPayloads(os.DirFS(src)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bin, err := p.Ensure(context.Background(), provision.Downloader)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if bin.Size != 3<<20 {
		t.Fatalf("expected %d bytes, got %d", 3<<20, bin.Size)
	}
}

func TestEmbeddedPayloadsMissingByDefault(t *testing.T) {
	// The repository ships only a README in payload/; release builds drop the
	// executables in before compiling.
	p, err := provision.New(filepath.Join(t.TempDir(), "bin"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	status := p.Inspect(provision.Downloader)
	if status.PayloadErr == nil {
		t.Skip("embedded downloader payload present")
	}
	_, err = p.Ensure(context.Background(), provision.Downloader)
	if !errors.Is(err, &provision.ProvisionError{Kind: provision.PayloadMissing}) {
		t.Fatalf("expected PayloadMissing, got %v", err)
	}
}

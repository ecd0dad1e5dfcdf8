package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"cdgrab/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Provision.BinDir = filepath.Join(base, "bin")
	cfgVal.Provision.PayloadDir = filepath.Join(base, "payload")
	cfgVal.Download.TargetDir = filepath.Join(base, "music")
	cfgVal.Logging.Dir = ""

	if err := os.MkdirAll(cfgVal.Provision.PayloadDir, 0o755); err != nil {
		t.Fatalf("mkdir payload dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPayload writes a /bin/sh stub named name into the payload directory.
func WithPayload(name, body string) ConfigOption {
	return func(b *configBuilder) {
		WriteScript(b.t, filepath.Join(b.cfg.Provision.PayloadDir, name), body)
	}
}

// WithStubPayloads writes quiet downloader and transcoder stubs that answer
// their version probes on stderr and otherwise exit 0.
func WithStubPayloads() ConfigOption {
	return func(b *configBuilder) {
		WithPayload("yt-dlp", DownloaderStub)(b)
		WithPayload("ffmpeg", TranscoderStub)(b)
	}
}

// WithChecksumSkip toggles provision.verify_checksum.
func WithChecksumSkip(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Provision.VerifyChecksum = enabled
	}
}

// WithFailOnExitCode toggles download.fail_on_exit_code.
func WithFailOnExitCode(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.FailOnExitCode = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Provision.BinDir)
}

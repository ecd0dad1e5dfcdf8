package provision

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"cdgrab/internal/config"
	"cdgrab/internal/fileutil"
	"cdgrab/internal/logging"
)

//go:embed payload
var embedded embed.FS

const (
	lockFileName      = ".provision.lock"
	lockRetryInterval = 50 * time.Millisecond
	executableMode    = 0o755
)

// Binary describes an executable that Ensure placed on disk.
type Binary struct {
	Tool   Tool
	Path   string
	Size   int64
	SHA256 string
	// Rewritten is false when checksum skipping found the file already current.
	Rewritten bool
}

// Provisioner writes tool payloads into a binaries directory.
type Provisioner struct {
	dir            string
	payloads       fs.FS
	verifyChecksum bool
	logger         *slog.Logger
}

// Option customizes a Provisioner.
type Option func(*Provisioner)

// WithPayloads replaces the embedded payloads. Files are looked up by
// Tool.FileName at the root of fsys.
func WithPayloads(fsys fs.FS) Option {
	return func(p *Provisioner) {
		if fsys != nil {
			p.payloads = fsys
		}
	}
}

// WithChecksumSkip leaves an existing executable alone when its SHA-256
// already matches the payload.
func WithChecksumSkip(enabled bool) Option {
	return func(p *Provisioner) {
		p.verifyChecksum = enabled
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// New constructs a provisioner that extracts into dir.
func New(dir string, opts ...Option) (*Provisioner, error) {
	if dir == "" {
		return nil, errors.New("provision: binaries directory is required")
	}
	payloads, err := fs.Sub(embedded, "payload")
	if err != nil {
		return nil, fmt.Errorf("provision: open embedded payloads: %w", err)
	}
	p := &Provisioner{dir: dir, payloads: payloads}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "provision")
	return p, nil
}

// NewFromConfig builds a provisioner from the [provision] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Provisioner, error) {
	if cfg == nil {
		return nil, errors.New("provision: config is required")
	}
	opts := []Option{
		WithChecksumSkip(cfg.Provision.VerifyChecksum),
		WithLogger(logger),
	}
	if cfg.Provision.PayloadDir != "" {
		opts = append(opts, WithPayloads(os.DirFS(cfg.Provision.PayloadDir)))
	}
	return New(cfg.Provision.BinDir, opts...)
}

// Dir returns the binaries directory.
func (p *Provisioner) Dir() string {
	return p.dir
}

// Path returns where tool is (or will be) extracted.
func (p *Provisioner) Path(tool Tool) string {
	return filepath.Join(p.dir, tool.FileName())
}

// Ensure writes the payload for tool into the binaries directory and returns
// its location. The executable is rewritten on every call unless checksum
// skipping is enabled and the on-disk copy already matches.
func (p *Provisioner) Ensure(ctx context.Context, tool Tool) (Binary, error) {
	if !tool.valid() {
		return Binary{}, fmt.Errorf("provision: unknown tool %q", tool)
	}
	target := p.Path(tool)
	logger := logging.WithContext(ctx, p.logger).With(logging.String("tool", string(tool)))

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return Binary{}, &ProvisionError{Kind: DirectoryUnwritable, Tool: tool, Path: p.dir, Err: err}
	}

	lock := flock.New(filepath.Join(p.dir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return Binary{}, &ProvisionError{Kind: DirectoryUnwritable, Tool: tool, Path: p.dir, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	if !locked {
		return Binary{}, &ProvisionError{Kind: DirectoryUnwritable, Tool: tool, Path: p.dir, Err: errors.New("acquire lock: not acquired")}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release provision lock failed", logging.Error(err))
		}
	}()

	data, err := fs.ReadFile(p.payloads, tool.FileName())
	if err != nil {
		return Binary{}, &ProvisionError{Kind: PayloadMissing, Tool: tool, Path: tool.FileName(), Err: err}
	}
	if len(data) == 0 {
		return Binary{}, &ProvisionError{Kind: PayloadMissing, Tool: tool, Path: tool.FileName(), Err: errors.New("payload is empty")}
	}

	if p.verifyChecksum {
		want := fileutil.DigestBytes(data)
		if current, err := fileutil.DigestFile(target); err == nil && current.Equal(want) {
			if err := os.Chmod(target, executableMode); err != nil {
				return Binary{}, &ProvisionError{Kind: WriteFailed, Tool: tool, Path: target, Err: err}
			}
			logger.Debug("tool already current", logging.String("path", target), logging.String("sha256", want.SHA256))
			return Binary{Tool: tool, Path: target, Size: want.Size, SHA256: want.SHA256}, nil
		}
	}

	digest, err := fileutil.WriteFileVerified(target, bytes.NewReader(data), executableMode)
	if err != nil {
		return Binary{}, &ProvisionError{Kind: WriteFailed, Tool: tool, Path: target, Err: err}
	}
	logger.Info("tool provisioned",
		logging.String("path", target),
		logging.Int64("bytes", digest.Size),
		logging.String("sha256", digest.SHA256),
	)
	return Binary{Tool: tool, Path: target, Size: digest.Size, SHA256: digest.SHA256, Rewritten: true}, nil
}

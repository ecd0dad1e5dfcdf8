package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Digest identifies file content by size and SHA-256.
type Digest struct {
	Size   int64
	SHA256 string
}

// Equal reports whether both digests describe the same content.
func (d Digest) Equal(other Digest) bool {
	return d.Size == other.Size && d.SHA256 == other.SHA256
}

// DigestBytes computes the digest of an in-memory payload.
func DigestBytes(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest{Size: int64(len(data)), SHA256: hex.EncodeToString(sum[:])}
}

// DigestFile streams path through SHA-256.
func DigestFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return Digest{}, err
	}
	return Digest{Size: n, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// WriteFileVerified streams src into dst with the given mode. The content is
// written to a temp file beside dst, re-read and compared by size and SHA-256,
// then renamed over dst, so an executable that is currently running is
// replaced rather than truncated. The temp file is removed on any failure.
func WriteFileVerified(dst string, src io.Reader, mode os.FileMode) (Digest, error) {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return Digest{}, err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		return Digest{}, err
	}
	if err := tmp.Sync(); err != nil {
		return Digest{}, err
	}
	if err := tmp.Close(); err != nil {
		return Digest{}, err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return Digest{}, err
	}

	want := Digest{Size: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}
	got, err := DigestFile(tmpPath)
	if err != nil {
		return Digest{}, fmt.Errorf("verify written file: %w", err)
	}
	if got.Size != want.Size {
		return Digest{}, fmt.Errorf("write size mismatch: expected %d bytes, found %d bytes", want.Size, got.Size)
	}
	if got.SHA256 != want.SHA256 {
		return Digest{}, fmt.Errorf("write hash mismatch: file corrupted during write")
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return Digest{}, err
	}
	committed = true
	return want, nil
}

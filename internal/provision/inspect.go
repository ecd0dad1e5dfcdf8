package provision

import (
	"errors"
	"io/fs"
	"os"
	"runtime"

	"cdgrab/internal/fileutil"
)

// Status is the on-disk state of one tool.
type Status struct {
	Tool       Tool
	Path       string
	Present    bool
	Executable bool
	Disk       fileutil.Digest
	Payload    fileutil.Digest
	// PayloadErr is set when no payload exists for the tool.
	PayloadErr error
	// Err is set when the extracted file exists but could not be read.
	Err error
}

// Current reports whether the extracted file matches the payload.
func (s Status) Current() bool {
	return s.Present && s.PayloadErr == nil && s.Err == nil && s.Disk.Equal(s.Payload)
}

// Inspect reports what is on disk for tool without writing anything.
func (p *Provisioner) Inspect(tool Tool) Status {
	status := Status{Tool: tool, Path: p.Path(tool)}

	if data, err := fs.ReadFile(p.payloads, tool.FileName()); err != nil {
		status.PayloadErr = err
	} else if len(data) == 0 {
		status.PayloadErr = errors.New("payload is empty")
	} else {
		status.Payload = fileutil.DigestBytes(data)
	}

	info, err := os.Stat(status.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			status.Err = err
		}
		return status
	}
	status.Present = true
	status.Executable = isExecutable(info)
	if !info.Mode().IsRegular() {
		return status
	}
	digest, err := fileutil.DigestFile(status.Path)
	if err != nil {
		status.Err = err
		return status
	}
	status.Disk = digest
	return status
}

// InspectAll inspects every tool in provisioning order.
func (p *Provisioner) InspectAll() []Status {
	tools := Tools()
	out := make([]Status, 0, len(tools))
	for _, tool := range tools {
		out = append(out, p.Inspect(tool))
	}
	return out
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

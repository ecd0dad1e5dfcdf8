package procexec

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// SpawnErrorKind classifies launch failures.
type SpawnErrorKind int

const (
	NotFound SpawnErrorKind = iota + 1
	PermissionDenied
	Other
)

func (k SpawnErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	default:
		return "spawn failed"
	}
}

// SpawnError reports why a process could not be started.
type SpawnError struct {
	Kind SpawnErrorKind
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

func newSpawnError(path string, err error) *SpawnError {
	return &SpawnError{Kind: classify(err), Path: path, Err: err}
}

func classify(err error) SpawnErrorKind {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	default:
		return Other
	}
}

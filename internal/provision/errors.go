package provision

import "fmt"

// ErrorKind classifies provisioning failures.
type ErrorKind int

const (
	// DirectoryUnwritable means the binaries directory could not be created
	// or locked.
	DirectoryUnwritable ErrorKind = iota + 1
	// WriteFailed means the executable could not be written (disk full,
	// permissions, verification mismatch).
	WriteFailed
	// PayloadMissing means no payload is available for the tool.
	PayloadMissing
)

func (k ErrorKind) String() string {
	switch k {
	case DirectoryUnwritable:
		return "directory unwritable"
	case WriteFailed:
		return "write failed"
	case PayloadMissing:
		return "payload missing"
	default:
		return "unknown"
	}
}

// ProvisionError reports why a tool could not be placed on disk.
type ProvisionError struct {
	Kind ErrorKind
	Tool Tool
	Path string
	Err  error
}

func (e *ProvisionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone: errors.Is(err, &ProvisionError{Kind: WriteFailed}).
func (e *ProvisionError) Is(target error) bool {
	t, ok := target.(*ProvisionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Tool == "" || t.Tool == e.Tool)
}

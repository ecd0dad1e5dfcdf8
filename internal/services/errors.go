package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProvisionFailed       = errors.New("provision failed")
	ErrSpawnFailed           = errors.New("spawn failed")
	ErrDirectoryCreateFailed = errors.New("directory create failed")
	ErrExitStatus            = errors.New("non-zero exit status")
	ErrValidation            = errors.New("validation error")
	ErrCancelled             = errors.New("cancelled")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Reason returns the human-readable part of an error produced by Wrap, without
// the marker prefix. Other errors are returned verbatim.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrProvisionFailed, ErrSpawnFailed, ErrDirectoryCreateFailed, ErrExitStatus, ErrValidation, ErrCancelled} {
		if errors.Is(err, marker) {
			msg = strings.TrimPrefix(msg, marker.Error()+": ")
			break
		}
	}
	return strings.TrimSpace(msg)
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "job failure"
	}
	return strings.Join(parts, ": ")
}

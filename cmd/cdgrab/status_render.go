package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"cdgrab/internal/transcript"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 12
	statusIndent     = "  "
	phaseLabelWidth  = 20
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// renderTranscriptLine prints one transcript entry as "phase  text". Status
// lines are highlighted; stderr output is dimmed.
func renderTranscriptLine(line transcript.Line, colorize bool) string {
	base := fmt.Sprintf("%-*s %s", phaseLabelWidth, line.Phase, lastRedraw(line.Text))
	if !colorize {
		return base
	}
	switch line.Stream {
	case transcript.StreamStatus:
		return ansiBlue + base + ansiReset
	case transcript.StreamStderr:
		return ansiDim + base + ansiReset
	default:
		if line.Lossy {
			return ansiYellow + base + ansiReset
		}
		return base
	}
}

// lastRedraw keeps the final carriage-return segment of a progress line; the
// earlier segments would overwrite the phase label on a terminal.
func lastRedraw(text string) string {
	segments := strings.Split(text, "\r")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

package provision

import (
	"fmt"
	"runtime"
	"strings"
)

// Tool identifies one of the bundled executables.
type Tool string

const (
	Downloader Tool = "downloader"
	Transcoder Tool = "transcoder"
)

// Tools lists every bundled tool in provisioning order.
func Tools() []Tool {
	return []Tool{Downloader, Transcoder}
}

// ParseTool accepts a logical name or the executable's base name.
func ParseTool(value string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(Downloader), "yt-dlp":
		return Downloader, nil
	case string(Transcoder), "ffmpeg":
		return Transcoder, nil
	default:
		return "", fmt.Errorf("unknown tool %q", value)
	}
}

// Command is the executable's base name without platform suffix.
func (t Tool) Command() string {
	switch t {
	case Downloader:
		return "yt-dlp"
	case Transcoder:
		return "ffmpeg"
	default:
		return string(t)
	}
}

// FileName is the on-disk name of the executable for the running platform.
func (t Tool) FileName() string {
	if runtime.GOOS == "windows" {
		return t.Command() + ".exe"
	}
	return t.Command()
}

func (t Tool) valid() bool {
	return t == Downloader || t == Transcoder
}

package deps

import (
	"fmt"
	"os/exec"

	"cdgrab/internal/provision"
)

// Inspector reports the on-disk state of the bundled tools.
type Inspector interface {
	InspectAll() []provision.Status
}

// Status reports the availability of one bundled tool.
type Status struct {
	Name        string
	Command     string
	Description string
	Present     bool
	Executable  bool
	Current     bool
	Size        int64
	SHA256      string
	Detail      string
	// SystemPath is a copy of the same tool found on PATH. cdgrab never runs
	// it; it is reported to explain version differences.
	SystemPath string
}

// Available reports whether the tool can be run as extracted.
func (s Status) Available() bool {
	return s.Present && s.Executable
}

var descriptions = map[provision.Tool]string{
	provision.Downloader: "Fetches media and extracts audio",
	provision.Transcoder: "Converts audio for the downloader",
}

// CheckTools evaluates every bundled tool.
func CheckTools(inspector Inspector) []Status {
	if inspector == nil {
		return nil
	}
	states := inspector.InspectAll()
	results := make([]Status, 0, len(states))
	for _, st := range states {
		status := Status{
			Name:        st.Tool.Command(),
			Command:     st.Path,
			Description: descriptions[st.Tool],
			Present:     st.Present,
			Executable:  st.Executable,
			Current:     st.Current(),
			Size:        st.Disk.Size,
			SHA256:      st.Disk.SHA256,
			Detail:      detail(st),
		}
		if path, err := exec.LookPath(st.Tool.Command()); err == nil && path != st.Path {
			status.SystemPath = path
		}
		results = append(results, status)
	}
	return results
}

// AllAvailable reports whether every tool is present and executable.
func AllAvailable(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Available() {
			return false
		}
	}
	return len(statuses) > 0
}

func detail(st provision.Status) string {
	switch {
	case st.Err != nil:
		return fmt.Sprintf("unreadable: %v", st.Err)
	case !st.Present && st.PayloadErr != nil:
		return "not extracted; no payload bundled"
	case !st.Present:
		return "not extracted yet"
	case !st.Executable:
		return "not executable"
	case st.PayloadErr != nil:
		return "no payload bundled to compare against"
	case !st.Current():
		return "differs from bundled payload; rewritten on next run"
	default:
		return ""
	}
}

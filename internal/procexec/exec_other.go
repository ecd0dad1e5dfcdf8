//go:build !unix && !windows

package procexec

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
)

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory: %w", fs.ErrPermission)
	}
	return nil
}

func configureCommand(*exec.Cmd) {}

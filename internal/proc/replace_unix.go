//go:build unix

package proc

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Replace overlays the current process with the given command. On success it
// never returns: the new process inherits the PID and receives container
// signals directly, with no supervising wrapper left in the signal path.
func Replace(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("command %q not found: %w", argv[0], err)
	}
	return syscall.Exec(path, argv, os.Environ())
}

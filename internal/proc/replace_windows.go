//go:build windows

package proc

import "fmt"

// Replace is unsupported on Windows: there is no exec-style process
// overlay, and the containers this tool bootstraps are Linux-only.
func Replace(argv []string) error {
	return fmt.Errorf("process replacement is not supported on windows")
}

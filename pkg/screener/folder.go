package screener

import (
	"fmt"
	"os"
)

// ResetFolder removes the folder and everything in it, then creates it
// again empty. A missing folder is not an error.
func ResetFolder(path string) error {
	if path == "" || path == "/" {
		return fmt.Errorf("refusing to reset folder %q", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

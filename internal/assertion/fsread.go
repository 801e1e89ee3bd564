package assertion

import (
	"errors"
	"os"
)

// readFile reports whether path exists and, if it does and is a regular
// file, returns its contents decoded as UTF-8 text.
func readFile(path string) (exists bool, contents string, err error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if isNotExist(readErr) {
			return false, "", nil
		}
		return false, "", readErr
	}
	return true, string(data), nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

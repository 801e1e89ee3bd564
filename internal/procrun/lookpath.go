package procrun

import "os"

// isExecutable reports whether path exists and is a regular file with at
// least one executable bit set.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

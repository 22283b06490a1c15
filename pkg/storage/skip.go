package storage

import (
	"os"
	"path/filepath"
)

// CountFiles counts the regular files directly inside dir. Subdirectories
// and temporary files left by an interrupted WriteFileAtomic are ignored.
// A missing or unreadable dir counts as zero.
func CountFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if isTempName(entry.Name()) {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err == nil && info.Mode().IsRegular() {
			count++
		}
	}
	return count
}

// AlreadyComplete reports whether dir holds exactly expected files.
// Only the count is compared, never names or contents.
func AlreadyComplete(dir string, expected int) bool {
	return CountFiles(dir) == expected
}

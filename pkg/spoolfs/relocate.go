package spoolfs

import (
	"fmt"
	"os"
	"path/filepath"
)

// Relocate moves path into destDir keeping its base name and returns the
// destination path. Files are only ever moved, never deleted; rename
// semantics require destDir to be on the same filesystem as path.
func Relocate(path, destDir string) (string, error) {
	dest := filepath.Join(destDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("relocate %s to %s: %w", path, destDir, err)
	}
	return dest, nil
}

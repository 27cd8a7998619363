package lifecycle

import (
	"os"
	"path/filepath"
)

// writeVersionMarker writes version to path, creating its parent
// directory if necessary. It overwrites unconditionally: the marker
// only needs to reflect the format the daemon just wrote.
func writeVersionMarker(path, version string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(version), 0o644)
}

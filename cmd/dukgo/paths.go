package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// modulesDirName is the per-project directory installed packages are linked
// into; the require loader searches it.
const modulesDirName = "js_modules"

// resolveHomeDir returns the shared cache root: $DUKGO_HOME when set,
// otherwise ~/.dukgo.
func resolveHomeDir() (string, error) {
	if dir := os.Getenv("DUKGO_HOME"); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolve DUKGO_HOME %q: %w", dir, err)
		}
		return abs, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".dukgo"), nil
}

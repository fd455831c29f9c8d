package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPruneModuleDirs(t *testing.T) {
	modulesDir := filepath.Join(t.TempDir(), modulesDirName)
	for _, name := range []string{"ape", "my-dep", "pig"} {
		if err := os.MkdirAll(filepath.Join(modulesDir, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}

	// Pruned names arrive sanitized, as the lockfile stores them.
	if err := pruneModuleDirs(modulesDir, []string{"ape", "my_dep"}); err != nil {
		t.Fatalf("pruneModuleDirs: %v", err)
	}

	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		t.Fatalf("read modules dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "pig" {
		t.Fatalf("surviving entries = %v, want only pig", entries)
	}
}

func TestPruneModuleDirsMissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), modulesDirName)
	if err := pruneModuleDirs(missing, []string{"ape"}); err != nil {
		t.Fatalf("pruneModuleDirs on missing dir: %v", err)
	}
}

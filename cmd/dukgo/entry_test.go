package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseFeatureFlags(t *testing.T) {
	features, remaining, err := parseFeatureFlags([]string{
		"--features=debug,trace", "--feature=spam", "main.js", "--features=ignored",
	})
	if err != nil {
		t.Fatalf("parseFeatureFlags: %v", err)
	}
	if !reflect.DeepEqual(features, []string{"debug", "trace", "spam"}) {
		t.Fatalf("features = %v", features)
	}
	if !reflect.DeepEqual(remaining, []string{"main.js", "--features=ignored"}) {
		t.Fatalf("remaining = %v", remaining)
	}
}

func TestParseFeatureFlagsUnknown(t *testing.T) {
	if _, _, err := parseFeatureFlags([]string{"--bogus"}); err == nil {
		t.Fatal("unknown flag accepted")
	}
	if _, _, err := parseFeatureFlags([]string{"--feature="}); err == nil {
		t.Fatal("empty --feature accepted")
	}
}

func TestRunWithLeadingFeatureFlags(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "app.js")
	if err := os.WriteFile(entry, []byte("exports.ok = true;"), 0o644); err != nil {
		t.Fatalf("write entry: %v", err)
	}

	if code := run([]string{"--features=trace", "run", entry}); code != 0 {
		t.Fatalf("run = %d, want 0", code)
	}
	if code := run([]string{"--features=trace", entry}); code != 0 {
		t.Fatalf("run without subcommand = %d, want 0", code)
	}
	if code := run([]string{"--bogus", "run", entry}); code != 1 {
		t.Fatal("unknown leading flag accepted")
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	manifestPath := filepath.Join(root, "package.yml")
	if err := os.WriteFile(manifestPath, []byte("name: demo\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	found, err := findManifest(nested)
	if err != nil {
		t.Fatalf("findManifest: %v", err)
	}
	if found != manifestPath {
		t.Fatalf("found = %s, want %s", found, manifestPath)
	}
}

func TestExecuteEntryRunsModule(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.js")
	script := "exports.done = require('./helper').value;"
	if err := os.WriteFile(entry, []byte(script), 0o644); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	helper := filepath.Join(dir, "helper.js")
	if err := os.WriteFile(helper, []byte("exports.value = 1;"), 0o644); err != nil {
		t.Fatalf("write helper: %v", err)
	}

	if code := executeEntry(entry, nil, nil, []string{"arg1"}); code != 0 {
		t.Fatalf("executeEntry = %d, want 0", code)
	}
}

func TestExecuteEntryMissingFile(t *testing.T) {
	if code := executeEntry(filepath.Join(t.TempDir(), "missing.js"), nil, nil, nil); code != 1 {
		t.Fatal("executeEntry succeeded for a missing entry file")
	}
}

func TestExecuteEntryScriptError(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "boom.js")
	if err := os.WriteFile(entry, []byte("throw new Error('boom');"), 0o644); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if code := executeEntry(entry, nil, nil, nil); code != 1 {
		t.Fatal("executeEntry succeeded for a throwing script")
	}
}

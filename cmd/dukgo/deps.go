package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukgo/dukgo/pkg/driver"
)

func runDeps(features []string, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dukgo deps requires a subcommand (install)")
		return 1
	}
	switch args[0] {
	case "install":
		more, remaining, err := parseFeatureFlags(args[1:])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		features = append(features, more...)
		if len(remaining) > 0 {
			fmt.Fprintf(os.Stderr, "dukgo deps install does not take arguments (received %s)\n", strings.Join(remaining, " "))
			return 1
		}
		return runDepsInstall(features)
	default:
		fmt.Fprintf(os.Stderr, "unknown deps subcommand %q\n", args[0])
		return 1
	}
}

func runDepsInstall(features []string) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to determine working directory: %v\n", err)
		return 1
	}
	manifestPath, err := findManifest(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to locate package.yml: %v\n", err)
		return 1
	}
	manifest, err := driver.LoadManifest(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read manifest: %v\n", err)
		return 1
	}
	resolved, err := driver.ResolveFeatures(manifest, features)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	cacheDir, err := resolveHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve DUKGO_HOME: %v\n", err)
		return 1
	}

	enabled := driver.EnabledDependencies(manifest, resolved)

	fmt.Fprintf(os.Stdout, "Manifest: %s\n", manifest.Path)
	fmt.Fprintf(os.Stdout, "Root package: %s\n", manifest.Name)
	fmt.Fprintf(os.Stdout, "Features: %s\n", strings.Join(resolved, ", "))
	fmt.Fprintf(os.Stdout, "Dependencies: %d\n", len(enabled))

	lockPath := filepath.Join(filepath.Dir(manifest.Path), "package.lock")
	lock, err := driver.LoadLockfile(lockPath)
	lockCreated := false
	switch {
	case err == nil:
		if lock.Root != manifest.Name {
			fmt.Fprintf(os.Stderr, "lockfile root %q does not match manifest name %q\n", lock.Root, manifest.Name)
			return 1
		}
	case errors.Is(err, os.ErrNotExist):
		lock = driver.NewLockfile(manifest.Name, cliToolVersion)
		lock.Path = lockPath
		lockCreated = true
	default:
		fmt.Fprintf(os.Stderr, "failed to read lockfile: %v\n", err)
		return 1
	}
	lock.Path = lockPath
	lock.Tool = cliToolVersion
	lock.Features = resolved

	installer := newDependencyInstaller(manifest, cacheDir)
	changed, logs, err := installer.install(lock, enabled)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve dependencies: %v\n", err)
		return 1
	}
	for _, line := range logs {
		fmt.Fprintln(os.Stdout, line)
	}

	if changed || lockCreated {
		action := "Updated"
		if lockCreated {
			action = "Created"
		}
		if err := driver.WriteLockfile(lock, lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write lockfile: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "%s package.lock: %s\n", action, lock.Path)
	} else {
		fmt.Fprintf(os.Stdout, "package.lock already up to date: %s\n", lock.Path)
	}

	fmt.Fprintln(os.Stdout, "Dependencies installed.")
	return 0
}

// dependencyInstaller fetches enabled dependencies into the shared cache and
// links them into the project's js_modules directory.
type dependencyInstaller struct {
	manifest *driver.Manifest
	cacheDir string
	git      *gitFetcher
	registry *registryFetcher
}

func newDependencyInstaller(manifest *driver.Manifest, cacheDir string) *dependencyInstaller {
	return &dependencyInstaller{
		manifest: manifest,
		cacheDir: cacheDir,
		git:      newGitFetcher(cacheDir),
		registry: newRegistryFetcher(cacheDir),
	}
}

func (di *dependencyInstaller) install(lock *driver.Lockfile, deps map[string]*driver.DependencySpec) (bool, []string, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	projectDir := filepath.Dir(di.manifest.Path)
	modulesDir := filepath.Join(projectDir, modulesDirName)

	changed := false
	var logs []string
	for _, name := range names {
		spec := deps[name]
		locked, srcDir, err := di.fetch(name, spec)
		if err != nil {
			return changed, logs, fmt.Errorf("dependency %q: %w", name, err)
		}

		target := filepath.Join(modulesDir, name)
		if err := copyOrSyncDir(srcDir, target); err != nil {
			return changed, logs, fmt.Errorf("dependency %q: link into %s: %w", name, modulesDir, err)
		}

		if prev, ok := lock.Package(name); !ok || prev.Checksum != locked.Checksum || prev.Version != locked.Version {
			lock.Upsert(locked)
			changed = true
		}
		logs = append(logs, fmt.Sprintf("Installed %s %s (%s)", locked.Name, locked.Version, locked.Source))
	}

	// Dependencies dropped from the manifest, or disabled by the feature set,
	// are pruned from the lockfile and js_modules.
	keep := make(map[string]struct{}, len(deps))
	for name := range deps {
		keep[sanitizeName(name)] = struct{}{}
	}
	removed := lock.Prune(func(name string) bool {
		_, ok := keep[name]
		return ok
	})
	if len(removed) > 0 {
		changed = true
		if err := pruneModuleDirs(modulesDir, removed); err != nil {
			return changed, logs, fmt.Errorf("prune %s: %w", modulesDir, err)
		}
		for _, name := range removed {
			logs = append(logs, fmt.Sprintf("Removed %s (no longer required)", name))
		}
	}
	return changed, logs, nil
}

// pruneModuleDirs deletes installed module directories whose lock entries were
// dropped. Directory names go through the same sanitizer the lock uses, so
// dashed package names are matched too.
func pruneModuleDirs(modulesDir string, names []string) error {
	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := drop[sanitizeName(entry.Name())]; !ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(modulesDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (di *dependencyInstaller) fetch(name string, spec *driver.DependencySpec) (*driver.LockedPackage, string, error) {
	switch {
	case spec == nil:
		return nil, "", errors.New("empty dependency spec")
	case spec.Path != "":
		return fetchPathDependency(di.manifest, name, spec)
	case spec.Git != "":
		return di.git.fetch(name, spec)
	case spec.Version != "":
		registry := spec.Registry
		if registry == "" {
			registry = "default"
		}
		return di.registry.fetch(registry, name, spec.Version)
	default:
		return nil, "", errors.New("must specify version, git, or path")
	}
}

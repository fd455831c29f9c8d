package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukgo/dukgo/pkg/driver"
	"github.com/dukgo/dukgo/pkg/engine"
	"github.com/dukgo/dukgo/pkg/require"
)

var errManifestNotFound = errors.New("package.yml not found")

func runEntry(features []string, args []string) int {
	// Flags are accepted on either side of the subcommand.
	more, remaining, err := parseFeatureFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	features = append(features, more...)

	manifest, err := loadManifestFrom(".")
	if err != nil {
		if !errors.Is(err, errManifestNotFound) {
			fmt.Fprintf(os.Stderr, "failed to load manifest: %v\n", err)
			return 1
		}
		manifest = nil
	}

	entryPath := ""
	var scriptArgs []string
	if len(remaining) > 0 {
		entryPath = remaining[0]
		scriptArgs = remaining[1:]
	} else if manifest != nil && manifest.Main != "" {
		entryPath = filepath.Join(filepath.Dir(manifest.Path), manifest.Main)
	}
	if entryPath == "" {
		fmt.Fprintln(os.Stderr, "dukgo run requires an entry file (or a manifest with a main entry)")
		return 1
	}

	resolved, err := driver.ResolveFeatures(manifest, features)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	return executeEntry(entryPath, manifest, resolved, scriptArgs)
}

func executeEntry(entryPath string, manifest *driver.Manifest, features []string, scriptArgs []string) int {
	absEntry, err := filepath.Abs(entryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve %s: %v\n", entryPath, err)
		return 1
	}
	if info, statErr := os.Stat(absEntry); statErr != nil || info.IsDir() {
		fmt.Fprintf(os.Stderr, "entry file %s not found\n", absEntry)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := engine.New(driver.EngineOptions(features, logger)...)

	loaderOpts := []require.Option{
		require.WithSearchPath(filepath.Dir(absEntry)),
	}
	if manifest != nil {
		modulesDir := filepath.Join(filepath.Dir(manifest.Path), modulesDirName)
		if info, err := os.Stat(modulesDir); err == nil && info.IsDir() {
			loaderOpts = append(loaderOpts, require.WithSearchPath(modulesDir))
		}
	}
	if featureEnabled(features, driver.FeatureTrace) {
		loaderOpts = append(loaderOpts, require.WithLogger(logger))
	}
	loader := require.NewLoader(loaderOpts...)
	if err := loader.Install(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to install module loader: %v\n", err)
		return 1
	}

	argv := engine.Array(toValueStrings(scriptArgs)...)
	if err := ctx.SetGlobal("scriptArgs", argv); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	// Entry files are loaded as modules so relative requires work.
	if _, err := loader.Require("./" + filepath.Base(absEntry)); err != nil {
		reportScriptError(err)
		return 1
	}
	return 0
}

func reportScriptError(err error) {
	var jsErr *engine.JSError
	if errors.As(err, &jsErr) {
		if jsErr.Stack != "" {
			fmt.Fprintln(os.Stderr, jsErr.Stack)
		} else {
			fmt.Fprintln(os.Stderr, jsErr.Message)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
}

// parseFeatureFlags strips --features=a,b / --feature=x flags from the front
// of the argument list.
func parseFeatureFlags(args []string) ([]string, []string, error) {
	var features []string
	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--features="):
			for _, f := range strings.Split(strings.TrimPrefix(arg, "--features="), ",") {
				f = strings.TrimSpace(f)
				if f != "" {
					features = append(features, f)
				}
			}
		case strings.HasPrefix(arg, "--feature="):
			f := strings.TrimSpace(strings.TrimPrefix(arg, "--feature="))
			if f == "" {
				return nil, nil, fmt.Errorf("--feature requires a name")
			}
			features = append(features, f)
		case strings.HasPrefix(arg, "--"):
			return nil, nil, fmt.Errorf("unknown flag %q", arg)
		default:
			return features, args[i:], nil
		}
	}
	return features, nil, nil
}

func featureEnabled(features []string, name string) bool {
	for _, f := range features {
		if f == name {
			return true
		}
	}
	return false
}

func toValueStrings(args []string) []engine.Value {
	out := make([]engine.Value, 0, len(args))
	for _, a := range args {
		out = append(out, engine.String(a))
	}
	return out
}

// loadManifestFrom walks upward from dir looking for package.yml.
func loadManifestFrom(dir string) (*driver.Manifest, error) {
	path, err := findManifest(dir)
	if err != nil {
		return nil, err
	}
	return driver.LoadManifest(path)
}

func findManifest(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, "package.yml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", errManifestNotFound
		}
		abs = parent
	}
}

package require

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// resolve maps a require request onto a module id and the file behind it.
// Ids are slash-separated paths relative to the search root that satisfied
// them, extension included ("ape.js"). Relative requests resolve against the
// requiring module's directory within each root; bare requests resolve
// against the roots directly.
func (l *Loader) resolve(parentID, request string) (string, string, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return "", "", fmt.Errorf("%w: empty request", ErrModuleNotFound)
	}

	var base string
	if isRelative(request) {
		base = path.Clean(path.Join(dirOf(parentID), request))
	} else {
		base = path.Clean(request)
	}
	if base == "." || base == ".." || strings.HasPrefix(base, "../") {
		return "", "", fmt.Errorf("%w: %q escapes the search roots", ErrModuleNotFound, request)
	}

	for _, candidate := range expandCandidates(base) {
		for _, root := range l.searchPaths {
			full := filepath.Join(root, filepath.FromSlash(candidate))
			info, err := os.Stat(full)
			if err != nil || info.IsDir() {
				continue
			}
			return candidate, full, nil
		}
	}
	if parentID != "" {
		return "", "", fmt.Errorf("%w: %q (required from %s)", ErrModuleNotFound, request, parentID)
	}
	return "", "", fmt.Errorf("%w: %q", ErrModuleNotFound, request)
}

// expandCandidates lists the ids to probe: the request as given, then with
// the .js and .json extensions appended.
func expandCandidates(base string) []string {
	if ext := path.Ext(base); ext == ".js" || ext == ".json" {
		return []string{base}
	}
	return []string{base, base + ".js", base + ".json"}
}

func isRelative(request string) bool {
	return request == "." || request == ".." ||
		strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../")
}

func isJSONID(id string) bool {
	return path.Ext(id) == ".json"
}

func dirOf(id string) string {
	d := path.Dir(id)
	if d == "/" {
		return "."
	}
	return d
}

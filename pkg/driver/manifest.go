// Package driver handles project-level concerns around the engine: the
// package.yml manifest, feature-flag resolution, the package.lock lockfile,
// and the layout conventions the CLI builds on.
package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest represents the parsed contents of package.yml.
type Manifest struct {
	Path            string
	Name            string
	Version         string
	License         string
	Authors         []string
	Main            string
	Dependencies    map[string]*DependencySpec
	DevDependencies map[string]*DependencySpec
	// Features maps a flag name onto the flags it implies. The stock engine
	// flags (debug, logging, spam, trace) are implicitly declared; debug
	// always implies logging.
	Features     map[string][]string
	FeatureOrder []string
}

// DependencySpec describes a dependency descriptor in the manifest.
type DependencySpec struct {
	Version  string
	Git      string
	Rev      string
	Tag      string
	Branch   string
	Path     string
	Registry string
	Features []string
	Optional bool
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// LoadManifest parses package.yml from disk, returning a validated manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw manifestFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %s is empty", absPath)
		}
		return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
	}

	manifest := raw.toManifest(absPath)
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (m *Manifest) validate() error {
	var errs ValidationError
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	for i, author := range m.Authors {
		if author == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("authors[%d] must be a non-empty string", i))
		}
	}

	for groupName, deps := range map[string]map[string]*DependencySpec{
		"dependencies":     m.Dependencies,
		"dev_dependencies": m.DevDependencies,
	} {
		for depName, dep := range deps {
			if dep == nil {
				continue
			}
			dep.normalize()
			for _, issue := range dep.validate(true) {
				errs.Issues = append(errs.Issues, fmt.Sprintf("%s.%s: %s", groupName, depName, issue))
			}
		}
	}

	for _, name := range m.FeatureOrder {
		for _, implied := range m.Features[name] {
			if m.featureKnown(implied) {
				continue
			}
			errs.Issues = append(errs.Issues, fmt.Sprintf("features.%s: implies unknown feature %q", name, implied))
		}
	}

	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// featureKnown reports whether a name is usable inside a feature list: a
// declared feature, a stock engine flag, or an optional dependency.
func (m *Manifest) featureKnown(name string) bool {
	if _, ok := m.Features[name]; ok {
		return true
	}
	if isStockFeature(name) {
		return true
	}
	if dep, ok := m.Dependencies[name]; ok && dep != nil && dep.Optional {
		return true
	}
	return false
}

// DefaultFeatures returns the `default` feature set, or nil when the
// manifest does not declare one.
func (m *Manifest) DefaultFeatures() []string {
	if m == nil {
		return nil
	}
	return append([]string{}, m.Features["default"]...)
}

func (d *DependencySpec) normalize() {
	if d == nil {
		return
	}
	if len(d.Features) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(d.Features))
	out := make([]string, 0, len(d.Features))
	for _, feature := range d.Features {
		feature = sanitizeSegment(feature)
		if feature == "" {
			continue
		}
		if _, ok := seen[feature]; ok {
			continue
		}
		seen[feature] = struct{}{}
		out = append(out, feature)
	}
	sort.Strings(out)
	d.Features = out
}

func (d *DependencySpec) validate(requireSource bool) []string {
	var errs []string
	if d == nil {
		return errs
	}

	if d.Path != "" && (d.Version != "" || d.Git != "") {
		errs = append(errs, "path overrides cannot specify version or git source")
	}
	if d.Git != "" && d.Version != "" {
		errs = append(errs, "git dependencies cannot also specify version")
	}
	if d.Registry != "" && (d.Git != "" || d.Path != "") {
		errs = append(errs, "registry overrides apply only to registry-based version dependencies")
	}

	hasSource := d.Version != "" || d.Git != "" || d.Path != ""
	if requireSource && !hasSource {
		errs = append(errs, "must specify version, git, or path")
	}

	if d.Version != "" && !isValidVersionConstraint(d.Version) {
		errs = append(errs, fmt.Sprintf("invalid version constraint %q", d.Version))
	}
	return errs
}

var versionConstraintPattern = regexp.MustCompile(`^(~>|>=|<=|>|<|=|\^)?\s*[0-9]+(\.[0-9]+){0,2}([0-9A-Za-z\-\+\.]*)?$`)

func isValidVersionConstraint(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" {
		return false
	}
	if s == "*" {
		return true
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || !versionConstraintPattern.MatchString(part) {
			return false
		}
	}
	return true
}

type manifestFile struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	License         string        `yaml:"license"`
	Authors         stringList    `yaml:"authors"`
	Main            string        `yaml:"main"`
	Dependencies    dependencyMap `yaml:"dependencies"`
	DevDependencies dependencyMap `yaml:"dev_dependencies"`
	Features        featureMap    `yaml:"features"`
}

type dependencyMap map[string]*DependencySpec

type stringList []string

// featureMap preserves declaration order so diagnostics and resolution are
// deterministic.
type featureMap struct {
	items []featureMapEntry
}

type featureMapEntry struct {
	name    string
	implies []string
}

func (fm *featureMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == 0 {
		fm.items = nil
		return nil
	}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		fm.items = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("manifest: features must be a mapping")
	}
	items := make([]featureMapEntry, 0, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valueNode := value.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return err
		}
		key = sanitizeSegment(key)
		if key == "" {
			return fmt.Errorf("manifest: features must not use empty keys")
		}
		var implies stringList
		if err := implies.UnmarshalYAML(valueNode); err != nil {
			return fmt.Errorf("manifest: feature %q: %w", key, err)
		}
		items = append(items, featureMapEntry{name: key, implies: implies.Clone()})
	}
	fm.items = items
	return nil
}

func (mf manifestFile) toManifest(path string) *Manifest {
	result := &Manifest{
		Path:            path,
		Name:            sanitizeSegment(strings.TrimSpace(mf.Name)),
		Version:         strings.TrimSpace(mf.Version),
		License:         strings.TrimSpace(mf.License),
		Authors:         mf.Authors.Clone(),
		Main:            strings.TrimSpace(mf.Main),
		Dependencies:    cloneDependencyMap(mf.Dependencies),
		DevDependencies: cloneDependencyMap(mf.DevDependencies),
		Features:        make(map[string][]string, len(mf.Features.items)),
		FeatureOrder:    make([]string, 0, len(mf.Features.items)),
	}

	for _, deps := range []map[string]*DependencySpec{result.Dependencies, result.DevDependencies} {
		for _, dep := range deps {
			if dep == nil {
				continue
			}
			dep.Version = strings.TrimSpace(dep.Version)
			dep.Git = strings.TrimSpace(dep.Git)
			dep.Rev = strings.TrimSpace(dep.Rev)
			dep.Tag = strings.TrimSpace(dep.Tag)
			dep.Branch = strings.TrimSpace(dep.Branch)
			dep.Path = strings.TrimSpace(dep.Path)
			dep.Registry = strings.TrimSpace(dep.Registry)
		}
	}

	for _, item := range mf.Features.items {
		if _, exists := result.Features[item.name]; exists {
			continue
		}
		implies := make([]string, 0, len(item.implies))
		for _, name := range item.implies {
			name = sanitizeSegment(name)
			if name == "" {
				continue
			}
			implies = append(implies, name)
		}
		result.Features[item.name] = implies
		result.FeatureOrder = append(result.FeatureOrder, item.name)
	}
	return result
}

func cloneDependencyMap(src dependencyMap) map[string]*DependencySpec {
	if len(src) == 0 {
		return map[string]*DependencySpec{}
	}
	out := make(map[string]*DependencySpec, len(src))
	for name, dep := range src {
		if dep == nil {
			continue
		}
		out[name] = dep.clone()
	}
	return out
}

func (d *DependencySpec) clone() *DependencySpec {
	if d == nil {
		return nil
	}
	copied := *d
	if len(d.Features) > 0 {
		copied.Features = append([]string{}, d.Features...)
	}
	return &copied
}

func (l stringList) Clone() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, item := range l {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = stringList{strings.TrimSpace(value.Value)}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			var str string
			if err := node.Decode(&str); err != nil {
				return err
			}
			str = strings.TrimSpace(str)
			if str == "" {
				continue
			}
			items = append(items, str)
		}
		*l = stringList(items)
		return nil
	case yaml.AliasNode:
		return l.UnmarshalYAML(value.Alias)
	case 0:
		*l = nil
		return nil
	default:
		return fmt.Errorf("manifest: expected string or sequence for list but found %s", value.ShortTag())
	}
}

func (dm *dependencyMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == 0 {
		*dm = make(dependencyMap)
		return nil
	}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*dm = make(dependencyMap)
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("manifest: dependencies must be a mapping")
	}
	result := make(dependencyMap, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("manifest: dependency names must be non-empty")
		}
		var dep DependencySpec
		if err := dep.unmarshalYAML(valNode); err != nil {
			return fmt.Errorf("manifest: dependency %q: %w", key, err)
		}
		result[key] = dep.clone()
	}
	*dm = result
	return nil
}

func (d *DependencySpec) unmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*d = DependencySpec{}
			return nil
		}
		*d = DependencySpec{Version: strings.TrimSpace(value.Value)}
		return nil
	case yaml.MappingNode:
		var raw struct {
			Version  string     `yaml:"version"`
			Git      string     `yaml:"git"`
			Rev      string     `yaml:"rev"`
			Tag      string     `yaml:"tag"`
			Branch   string     `yaml:"branch"`
			Path     string     `yaml:"path"`
			Registry string     `yaml:"registry"`
			Features stringList `yaml:"features"`
			Optional bool       `yaml:"optional"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		*d = DependencySpec{
			Version:  strings.TrimSpace(raw.Version),
			Git:      strings.TrimSpace(raw.Git),
			Rev:      strings.TrimSpace(raw.Rev),
			Tag:      strings.TrimSpace(raw.Tag),
			Branch:   strings.TrimSpace(raw.Branch),
			Path:     strings.TrimSpace(raw.Path),
			Registry: strings.TrimSpace(raw.Registry),
			Features: raw.Features.Clone(),
			Optional: raw.Optional,
		}
		return nil
	case yaml.AliasNode:
		return d.unmarshalYAML(value.Alias)
	default:
		return fmt.Errorf("expected string or mapping, found %s", value.ShortTag())
	}
}

func sanitizeSegment(seg string) string {
	seg = strings.TrimSpace(seg)
	seg = strings.ReplaceAll(seg, "-", "_")
	return seg
}

package driver

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/dukgo/dukgo/pkg/engine"
)

// The stock engine flags. They exist whether or not the manifest declares
// them, matching the distribution's feature surface.
const (
	FeatureDebug   = "debug"
	FeatureLogging = "logging"
	FeatureSpam    = "spam"
	FeatureTrace   = "trace"
)

func isStockFeature(name string) bool {
	switch name {
	case FeatureDebug, FeatureLogging, FeatureSpam, FeatureTrace:
		return true
	default:
		return false
	}
}

// ResolveFeatures expands the requested flags through the manifest's
// implication edges, returning the sorted transitive closure. An empty
// request selects the manifest's default set. Debug always pulls in logging.
func ResolveFeatures(m *Manifest, requested []string) ([]string, error) {
	if len(requested) == 0 && m != nil {
		requested = m.DefaultFeatures()
	}
	resolved := make(map[string]struct{})
	var visit func(name string) error
	visit = func(name string) error {
		name = sanitizeSegment(name)
		if name == "" {
			return nil
		}
		if _, ok := resolved[name]; ok {
			return nil
		}
		var implies []string
		declared := false
		if m != nil {
			implies, declared = m.Features[name]
		}
		if !declared && !isStockFeature(name) && !isOptionalDependency(m, name) {
			return fmt.Errorf("features: unknown feature %q", name)
		}
		resolved[name] = struct{}{}
		if name == FeatureDebug {
			resolved[FeatureLogging] = struct{}{}
		}
		for _, implied := range implies {
			if err := visit(implied); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range requested {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(resolved))
	for name := range resolved {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func isOptionalDependency(m *Manifest, name string) bool {
	if m == nil {
		return false
	}
	dep, ok := m.Dependencies[name]
	return ok && dep != nil && dep.Optional
}

// EngineOptions maps resolved feature flags onto engine construction options.
func EngineOptions(features []string, logger *slog.Logger) []engine.Option {
	set := make(map[string]struct{}, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	var opts []engine.Option
	if _, ok := set[FeatureDebug]; ok {
		opts = append(opts, engine.WithDebug())
	}
	if _, ok := set[FeatureLogging]; ok {
		opts = append(opts, engine.WithLogging(logger))
	}
	if _, ok := set[FeatureSpam]; ok {
		opts = append(opts, engine.WithSpam())
	}
	if _, ok := set[FeatureTrace]; ok {
		opts = append(opts, engine.WithTrace())
	}
	return opts
}

// EnabledDependencies filters the manifest's dependencies by the resolved
// feature set: mandatory dependencies always, optional ones only when a flag
// of the same name is enabled.
func EnabledDependencies(m *Manifest, features []string) map[string]*DependencySpec {
	if m == nil {
		return map[string]*DependencySpec{}
	}
	set := make(map[string]struct{}, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	out := make(map[string]*DependencySpec, len(m.Dependencies))
	for name, dep := range m.Dependencies {
		if dep == nil {
			continue
		}
		if dep.Optional {
			if _, ok := set[sanitizeSegment(name)]; !ok {
				continue
			}
		}
		out[name] = dep.clone()
	}
	return out
}

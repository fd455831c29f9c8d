package driver

import (
	"reflect"
	"testing"
)

func manifestWithFeatures(features map[string][]string, order []string) *Manifest {
	return &Manifest{
		Name:         "demo",
		Dependencies: map[string]*DependencySpec{},
		Features:     features,
		FeatureOrder: order,
	}
}

func TestResolveFeaturesClosure(t *testing.T) {
	m := manifestWithFeatures(map[string][]string{
		"default": {"verbose"},
		"verbose": {"trace"},
	}, []string{"default", "verbose"})

	resolved, err := ResolveFeatures(m, []string{"default"})
	if err != nil {
		t.Fatalf("ResolveFeatures: %v", err)
	}
	want := []string{"default", "trace", "verbose"}
	if !reflect.DeepEqual(resolved, want) {
		t.Fatalf("resolved = %v, want %v", resolved, want)
	}
}

func TestResolveFeaturesEmptyRequestUsesDefault(t *testing.T) {
	m := manifestWithFeatures(map[string][]string{
		"default": {"logging"},
	}, []string{"default"})

	resolved, err := ResolveFeatures(m, nil)
	if err != nil {
		t.Fatalf("ResolveFeatures: %v", err)
	}
	want := []string{"logging"}
	if !reflect.DeepEqual(resolved, want) {
		t.Fatalf("resolved = %v, want %v", resolved, want)
	}
}

func TestResolveFeaturesDebugImpliesLogging(t *testing.T) {
	resolved, err := ResolveFeatures(nil, []string{"debug"})
	if err != nil {
		t.Fatalf("ResolveFeatures: %v", err)
	}
	want := []string{"debug", "logging"}
	if !reflect.DeepEqual(resolved, want) {
		t.Fatalf("resolved = %v, want %v", resolved, want)
	}
}

func TestResolveFeaturesStockFlags(t *testing.T) {
	resolved, err := ResolveFeatures(nil, []string{"spam", "trace"})
	if err != nil {
		t.Fatalf("ResolveFeatures: %v", err)
	}
	want := []string{"spam", "trace"}
	if !reflect.DeepEqual(resolved, want) {
		t.Fatalf("resolved = %v, want %v", resolved, want)
	}
}

func TestResolveFeaturesUnknown(t *testing.T) {
	if _, err := ResolveFeatures(nil, []string{"nope"}); err == nil {
		t.Fatal("unknown feature resolved successfully")
	}
}

func TestResolveFeaturesOptionalDependencyFlag(t *testing.T) {
	m := manifestWithFeatures(nil, nil)
	m.Dependencies = map[string]*DependencySpec{
		"extras": {Version: "1.0.0", Optional: true},
	}
	resolved, err := ResolveFeatures(m, []string{"extras"})
	if err != nil {
		t.Fatalf("ResolveFeatures: %v", err)
	}
	if !reflect.DeepEqual(resolved, []string{"extras"}) {
		t.Fatalf("resolved = %v, want [extras]", resolved)
	}
}

func TestResolveFeaturesCycle(t *testing.T) {
	m := manifestWithFeatures(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}, []string{"a", "b"})

	resolved, err := ResolveFeatures(m, []string{"a"})
	if err != nil {
		t.Fatalf("ResolveFeatures: %v", err)
	}
	want := []string{"a", "b"}
	if !reflect.DeepEqual(resolved, want) {
		t.Fatalf("resolved = %v, want %v", resolved, want)
	}
}

func TestEnabledDependencies(t *testing.T) {
	m := &Manifest{
		Name: "demo",
		Dependencies: map[string]*DependencySpec{
			"pig":    {Version: "1.0.0"},
			"extras": {Version: "2.0.0", Optional: true},
		},
	}

	enabled := EnabledDependencies(m, []string{"logging"})
	if _, ok := enabled["pig"]; !ok {
		t.Fatal("mandatory dependency missing")
	}
	if _, ok := enabled["extras"]; ok {
		t.Fatal("optional dependency enabled without its flag")
	}

	enabled = EnabledDependencies(m, []string{"extras"})
	if _, ok := enabled["extras"]; !ok {
		t.Fatal("optional dependency not enabled by its flag")
	}
}

func TestEngineOptionsCount(t *testing.T) {
	if opts := EngineOptions(nil, nil); len(opts) != 0 {
		t.Fatalf("EngineOptions(nil) = %d options, want 0", len(opts))
	}
	opts := EngineOptions([]string{"debug", "logging", "spam", "trace"}, nil)
	if len(opts) != 4 {
		t.Fatalf("EngineOptions = %d options, want 4", len(opts))
	}
}

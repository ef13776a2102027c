// Package flags implements the dependency-aware feature flag registry
// and the enable/disable lifecycle built on top of it.
//
// The registry is a YAML file mapping feature names to definitions.
// Evaluation fails closed: a registry that cannot be read behaves as an
// empty registry with require_explicit_enable set, and unknown features
// always report disabled.
package flags

import (
	"fmt"
	"sort"
	"strings"
)

// Definition is a single feature flag.
type Definition struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Metadata identifies the registry version and target environment.
type Metadata struct {
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// Safety holds the registry-wide safety posture.
type Safety struct {
	RequireExplicitEnable bool `yaml:"require_explicit_enable" json:"require_explicit_enable"`
	DisableOnError        bool `yaml:"disable_on_error" json:"disable_on_error"`
}

// Registry is the full flag definition set.
type Registry struct {
	Features map[string]*Definition `yaml:"features" json:"features"`
	Metadata Metadata               `yaml:"metadata" json:"metadata"`
	Safety   Safety                 `yaml:"safety" json:"safety"`
}

// EmptyRegistry returns the fail-closed registry used when loading fails.
func EmptyRegistry() *Registry {
	return &Registry{
		Features: map[string]*Definition{},
		Safety:   Safety{RequireExplicitEnable: true},
	}
}

// IsEnabled reports the effective enabled state of name: the flag's own
// bit AND every dependency's effective state, recursively. Unknown
// names are disabled. A dependency cycle encountered during evaluation
// is treated as disabled for that path rather than recursing forever;
// Validate reports cycles as errors.
func (r *Registry) IsEnabled(name string) bool {
	return r.isEnabled(name, make(map[string]bool))
}

func (r *Registry) isEnabled(name string, visiting map[string]bool) bool {
	def, ok := r.Features[name]
	if !ok {
		return false
	}
	if visiting[name] {
		// Revisited on the current evaluation path: cycle. Conservative
		// default, not an error.
		return false
	}
	if !def.Enabled {
		return false
	}

	visiting[name] = true
	defer delete(visiting, name)

	for _, dep := range def.Dependencies {
		if !r.isEnabled(dep, visiting) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy, used by writers so concurrent readers
// never observe a half-applied mutation.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		Features: make(map[string]*Definition, len(r.Features)),
		Metadata: r.Metadata,
		Safety:   r.Safety,
	}
	for name, def := range r.Features {
		d := *def
		d.Dependencies = append([]string(nil), def.Dependencies...)
		out.Features[name] = &d
	}
	return out
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.Features))
	for name := range r.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownFeatureError is returned for operations on unregistered names.
type UnknownFeatureError struct {
	Name string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("unknown feature %q", e.Name)
}

// DependencyError is returned when enabling a feature whose
// dependencies are not effectively enabled. Fix by enabling the listed
// dependencies first, or pass force.
type DependencyError struct {
	Name    string
	Missing []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("cannot enable %q: dependencies not enabled: %s",
		e.Name, strings.Join(e.Missing, ", "))
}

// FeatureDisabledError is returned by RequireFeature guards.
type FeatureDisabledError struct {
	Name string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("feature %q is not enabled", e.Name)
}

// CircularDependencyError is reported by Validate, never thrown during
// evaluation (evaluation defaults cyclic paths to disabled).
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}

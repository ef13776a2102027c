package flags

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return &Registry{
		Features: map[string]*Definition{
			"ingest":    {Enabled: true},
			"warehouse": {Enabled: true, Dependencies: []string{"ingest"}},
			"transform": {Enabled: true, Dependencies: []string{"warehouse"}},
			"publish":   {Enabled: false, Dependencies: []string{"transform"}},
			"reports":   {Enabled: true, Dependencies: []string{"publish"}},
		},
		Metadata: Metadata{Version: "1.0.0", Environment: "test"},
	}
}

func TestIsEnabled_RequiresAllDependencies(t *testing.T) {
	reg := testRegistry()

	assert.True(t, reg.IsEnabled("ingest"))
	assert.True(t, reg.IsEnabled("warehouse"))
	assert.True(t, reg.IsEnabled("transform"))
	assert.False(t, reg.IsEnabled("publish"), "own bit is off")
	assert.False(t, reg.IsEnabled("reports"), "dependency publish is off")
}

func TestIsEnabled_DisabledDependencyDisablesDependent(t *testing.T) {
	// {A: enabled=false, deps=[]; B: enabled=true, deps=[A]} => B false.
	reg := &Registry{Features: map[string]*Definition{
		"a": {Enabled: false},
		"b": {Enabled: true, Dependencies: []string{"a"}},
	}}

	assert.False(t, reg.IsEnabled("b"))
}

func TestIsEnabled_UnknownIsFalse(t *testing.T) {
	assert.False(t, testRegistry().IsEnabled("nope"))
}

func TestIsEnabled_CycleTerminatesAndFailsClosed(t *testing.T) {
	reg := &Registry{Features: map[string]*Definition{
		"a": {Enabled: true, Dependencies: []string{"b"}},
		"b": {Enabled: true, Dependencies: []string{"a"}},
	}}

	// Must terminate; cyclic path defaults to disabled.
	assert.False(t, reg.IsEnabled("a"))
	assert.False(t, reg.IsEnabled("b"))
}

func TestIsEnabled_DiamondIsNotACycle(t *testing.T) {
	reg := &Registry{Features: map[string]*Definition{
		"base":  {Enabled: true},
		"left":  {Enabled: true, Dependencies: []string{"base"}},
		"right": {Enabled: true, Dependencies: []string{"base"}},
		"top":   {Enabled: true, Dependencies: []string{"left", "right"}},
	}}

	// base is visited twice on different paths; only true cycles fail.
	assert.True(t, reg.IsEnabled("top"))
}

func TestTransitiveDependents_BreadthFirstDiscoveryOrder(t *testing.T) {
	reg := testRegistry()

	got := reg.TransitiveDependents("warehouse")
	assert.Equal(t, []string{"transform", "publish", "reports"}, got)
}

func TestValidate_ReportsCyclesAndUnknownDeps(t *testing.T) {
	reg := &Registry{Features: map[string]*Definition{
		"a": {Enabled: true, Dependencies: []string{"b"}},
		"b": {Enabled: true, Dependencies: []string{"a"}},
		"c": {Enabled: true, Dependencies: []string{"ghost"}},
	}}

	res := reg.Validate()
	require.False(t, res.Valid)

	var cycleErr *CircularDependencyError
	foundCycle := false
	foundUnknown := false
	for _, err := range res.Errors {
		if errors.As(err, &cycleErr) {
			foundCycle = true
		} else {
			foundUnknown = true
		}
	}
	assert.True(t, foundCycle, "cycle not reported: %v", res.Errors)
	assert.True(t, foundUnknown, "unknown dep not reported: %v", res.Errors)

	// Missing metadata surfaces as warnings, never errors.
	assert.Len(t, res.Warnings, 2)
}

func TestValidate_CleanRegistryIsValid(t *testing.T) {
	res := testRegistry().Validate()
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestClone_IsIndependent(t *testing.T) {
	reg := testRegistry()
	clone := reg.Clone()

	clone.Features["ingest"].Enabled = false
	clone.Features["warehouse"].Dependencies[0] = "other"

	assert.True(t, reg.Features["ingest"].Enabled)
	assert.Equal(t, "ingest", reg.Features["warehouse"].Dependencies[0])
}

func TestEmptyRegistry_FailsClosed(t *testing.T) {
	reg := EmptyRegistry()
	assert.True(t, reg.Safety.RequireExplicitEnable)
	assert.False(t, reg.IsEnabled("anything"))
}

// Package rollback maps operational stories to feature flags and
// rollback scripts, and sequences their reversal.
package rollback

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// StoryMapping ties a story to its feature flag and rollback script.
// Read-only reference data.
type StoryMapping struct {
	Feature string `yaml:"feature"`
	Script  string `yaml:"script"`
}

// Mappings is the story -> mapping table.
type Mappings map[string]StoryMapping

// LoadMappings reads the story table from path. A missing file yields
// the built-in default table; a malformed file is an error, since a
// wrong mapping could run the wrong script.
func LoadMappings(path string) (Mappings, error) {
	data, err := os.ReadFile(path) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return DefaultMappings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading story mappings: %w", err)
	}

	var m Mappings
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing story mappings: %w", err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("story mappings file %s defines no stories", path)
	}
	return m, nil
}

// DefaultMappings is the built-in story table for the data platform
// expansion stories.
func DefaultMappings() Mappings {
	return Mappings{
		"1.2": {Feature: "pyairbyte_integration", Script: "rollback-story-1.2.sh"},
		"1.3": {Feature: "duckdb_analytics", Script: "rollback-story-1.3.sh"},
		"1.4": {Feature: "sqlmesh_transformations", Script: "rollback-story-1.4.sh"},
		"1.5": {Feature: "dagster_orchestration", Script: "rollback-story-1.5.sh"},
		"1.6": {Feature: "eda_automation", Script: "rollback-story-1.6.sh"},
		"1.7": {Feature: "evidence_publishing", Script: "rollback-story-1.7.sh"},
		"1.8": {Feature: "dbt_transformations", Script: "rollback-story-1.8.sh"},
	}
}

// StoryIDs returns the mapped story identifiers in sorted order.
func (m Mappings) StoryIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

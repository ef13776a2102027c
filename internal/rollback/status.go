package rollback

import (
	"os"
	"path/filepath"
)

// StoryStatus is the operational readiness of one story's rollback
// path: whether the script exists on disk and whether the mapped
// feature is currently enabled.
type StoryStatus struct {
	StoryID        string `json:"story"`
	Feature        string `json:"feature"`
	Script         string `json:"script"`
	ScriptExists   bool   `json:"script_exists"`
	FeatureEnabled bool   `json:"feature_enabled"`
}

// Status reports every mapped story, sorted by story ID. Pure read, no
// side effects.
func (o *Orchestrator) Status() []StoryStatus {
	out := make([]StoryStatus, 0, len(o.mappings))
	for _, id := range o.mappings.StoryIDs() {
		mapping := o.mappings[id]

		_, statErr := os.Stat(filepath.Join(o.scriptsDir, mapping.Script))
		enabled := false
		if o.store != nil {
			enabled = o.store.IsEnabled(mapping.Feature)
		}

		out = append(out, StoryStatus{
			StoryID:        id,
			Feature:        mapping.Feature,
			Script:         mapping.Script,
			ScriptExists:   statErr == nil,
			FeatureEnabled: enabled,
		})
	}
	return out
}

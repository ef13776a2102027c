package rollback

import (
	"fmt"
	"strings"
)

// GenerateDocs renders the story rollback reference: a markdown table
// of every mapped story with its current readiness, plus copy-paste
// commands. Formatting only, no semantics.
func (o *Orchestrator) GenerateDocs() string {
	var b strings.Builder

	b.WriteString("# Story Rollback Reference\n\n")
	b.WriteString("| Story | Feature | Script | Status |\n")
	b.WriteString("|-------|---------|--------|--------|\n")

	statuses := o.Status()
	for _, st := range statuses {
		status := "ready"
		switch {
		case !st.ScriptExists:
			status = "script missing"
		case !st.FeatureEnabled:
			status = "feature disabled"
		}
		fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n",
			st.StoryID, st.Feature, st.Script, status)
	}

	b.WriteString("\n## Commands\n\n")
	b.WriteString("Dry-run first, then execute with a reason:\n\n```\n")
	for _, st := range statuses {
		fmt.Fprintf(&b, "dpa rollback story %s --dry-run\n", st.StoryID)
	}
	b.WriteString("```\n\n```\n")
	for _, st := range statuses {
		fmt.Fprintf(&b, "dpa rollback story %s --reason \"<why>\"\n", st.StoryID)
	}
	b.WriteString("```\n")

	return b.String()
}

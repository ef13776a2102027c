package deploy

import (
	"fmt"
	"strings"
	"time"
)

// Report renders a deployment record as a markdown summary suitable
// for pasting into an incident doc or PR.
func Report(rec *Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Deployment Report: %s\n\n", rec.ID)
	fmt.Fprintf(&b, "- **Environment:** %s\n", rec.Environment)
	fmt.Fprintf(&b, "- **Status:** %s\n", rec.Status)
	fmt.Fprintf(&b, "- **Started:** %s\n", rec.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration:** %s\n", (time.Duration(rec.DurationMS) * time.Millisecond).String())
	if rec.Error != "" {
		fmt.Fprintf(&b, "- **Error:** %s\n", rec.Error)
	}
	if rec.RollbackAttempted {
		b.WriteString("- **Rollback attempted:** yes\n")
	}
	b.WriteString("\n## Steps\n\n")
	b.WriteString("| Step | Status | Duration | Detail |\n")
	b.WriteString("|------|--------|----------|--------|\n")

	for _, step := range rec.Steps {
		detail := step.Result
		if step.Error != "" {
			detail = step.Error
		}
		fmt.Fprintf(&b, "| %s | %s | %dms | %s |\n",
			step.Name, step.Status, step.DurationMS, detail)
	}

	var warnings []string
	for _, step := range rec.Steps {
		for _, w := range step.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", step.Name, w))
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

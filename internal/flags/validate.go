package flags

import "fmt"

// ValidationResult is the outcome of a registry consistency check.
type ValidationResult struct {
	Valid    bool
	Errors   []error
	Warnings []string
}

const (
	colorWhite = iota // unvisited
	colorGrey         // on the recursion stack
	colorBlack        // fully explored
)

// Validate checks the registry for dependency cycles (DFS with an
// explicit recursion stack, unlike the evaluation-time visited guard
// this one reports), dependencies on unknown features, and missing
// metadata (warnings only).
func (r *Registry) Validate() *ValidationResult {
	res := &ValidationResult{}

	names := r.sortedNames()

	for _, name := range names {
		for _, dep := range r.Features[name].Dependencies {
			if _, ok := r.Features[dep]; !ok {
				res.Errors = append(res.Errors,
					fmt.Errorf("feature %q depends on unknown feature %q", name, dep))
			}
		}
	}

	marks := make(map[string]int, len(r.Features))
	var stack []string

	var visit func(name string)
	visit = func(name string) {
		marks[name] = colorGrey
		stack = append(stack, name)

		for _, dep := range r.Features[name].Dependencies {
			if _, ok := r.Features[dep]; !ok {
				continue // already reported above
			}
			switch marks[dep] {
			case colorWhite:
				visit(dep)
			case colorGrey:
				// dep is on the current stack: slice out the cycle.
				start := 0
				for i, n := range stack {
					if n == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string(nil), stack[start:]...), dep)
				res.Errors = append(res.Errors, &CircularDependencyError{Cycle: cycle})
			}
		}

		stack = stack[:len(stack)-1]
		marks[name] = colorBlack
	}

	for _, name := range names {
		if marks[name] == colorWhite {
			visit(name)
		}
	}

	if r.Metadata.Version == "" {
		res.Warnings = append(res.Warnings, "metadata.version is not set")
	}
	if r.Metadata.Environment == "" {
		res.Warnings = append(res.Warnings, "metadata.environment is not set")
	}

	res.Valid = len(res.Errors) == 0
	return res
}

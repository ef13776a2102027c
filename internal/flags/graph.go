package flags

// Dependents builds the reverse adjacency list: feature -> features
// that list it as a dependency. Features are visited in sorted name
// order so the result is deterministic.
func (r *Registry) Dependents() map[string][]string {
	rev := make(map[string][]string)
	for _, name := range r.sortedNames() {
		for _, dep := range r.Features[name].Dependencies {
			rev[dep] = append(rev[dep], name)
		}
	}
	return rev
}

// TransitiveDependents returns every feature transitively dependent on
// name, in breadth-first discovery order. name itself is excluded.
// Cycle-safe via an explicit visited set.
func (r *Registry) TransitiveDependents(name string) []string {
	rev := r.Dependents()

	var out []string
	visited := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dependent := range rev[cur] {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			out = append(out, dependent)
			queue = append(queue, dependent)
		}
	}
	return out
}

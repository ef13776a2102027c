package flags

// EnableFeature sets name to enabled. Unless force is set, every
// dependency must already be effectively enabled; otherwise a
// DependencyError lists all disabled dependencies. A successful
// mutation is persisted and replaces the read cache.
func (s *Store) EnableFeature(name string, force bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	reg := s.Load().Clone()
	def, ok := reg.Features[name]
	if !ok {
		return &UnknownFeatureError{Name: name}
	}

	if !force {
		var missing []string
		for _, dep := range def.Dependencies {
			if !reg.IsEnabled(dep) {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			return &DependencyError{Name: name, Missing: missing}
		}
	}

	def.Enabled = true
	if err := s.persist(reg); err != nil {
		return err
	}

	_ = s.aud.FeatureFlagChanged(name, true)
	return nil
}

// DisableFeature sets name to disabled and returns the names disabled,
// starting with name. With cascade, every feature transitively
// dependent on name is disabled too, in breadth-first discovery order.
// Without cascade only name is touched, even though dependents become
// individually non-functional per IsEnabled.
func (s *Store) DisableFeature(name string, cascade bool) ([]string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	reg := s.Load().Clone()
	if _, ok := reg.Features[name]; !ok {
		return nil, &UnknownFeatureError{Name: name}
	}

	disabled := []string{name}
	reg.Features[name].Enabled = false

	if cascade {
		for _, dependent := range reg.TransitiveDependents(name) {
			reg.Features[dependent].Enabled = false
			disabled = append(disabled, dependent)
		}
	}

	if err := s.persist(reg); err != nil {
		return nil, err
	}

	for _, n := range disabled {
		_ = s.aud.FeatureFlagChanged(n, false)
	}
	return disabled, nil
}

// Info is a feature's definition joined with its effective state.
type Info struct {
	Name         string   `json:"name"`
	Enabled      bool     `json:"enabled"`
	Effective    bool     `json:"effective"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Info returns the joined view for a single feature.
func (s *Store) Info(name string) (*Info, error) {
	reg := s.Load()
	def, ok := reg.Features[name]
	if !ok {
		return nil, &UnknownFeatureError{Name: name}
	}
	return &Info{
		Name:         name,
		Enabled:      def.Enabled,
		Effective:    reg.IsEnabled(name),
		Description:  def.Description,
		Dependencies: def.Dependencies,
	}, nil
}

// List returns every feature sorted by name, with both the raw enabled
// bit and the dependency-aware effective state.
func (s *Store) List() []Info {
	reg := s.Load()

	out := make([]Info, 0, len(reg.Features))
	for _, name := range reg.sortedNames() {
		def := reg.Features[name]
		out = append(out, Info{
			Name:         name,
			Enabled:      def.Enabled,
			Effective:    reg.IsEnabled(name),
			Description:  def.Description,
			Dependencies: def.Dependencies,
		})
	}
	return out
}

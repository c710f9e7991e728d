package phase

import "maps"

// State is the phase-scoped key/value bag merged into the trial record.
// Keys are prefixed with "<prefix>_" unless the prefix is empty.
type State struct {
	prefix string
	values map[string]any
}

func newState(prefix string) *State {
	return &State{prefix: prefix, values: map[string]any{}}
}

func (s *State) key(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "_" + k
}

// Set stores v under the default prefix.
func (s *State) Set(k string, v any) *State {
	s.values[s.key(s.prefix, k)] = v
	return s
}

// SetPrefixed stores v under an explicit prefix; "" stores the raw key.
func (s *State) SetPrefixed(prefix, k string, v any) *State {
	s.values[s.key(prefix, k)] = v
	return s
}

// Get looks up the raw key first, then the prefixed one.
func (s *State) Get(k string) (any, bool) {
	if v, ok := s.values[k]; ok {
		return v, true
	}
	v, ok := s.values[s.key(s.prefix, k)]
	return v, ok
}

// Values returns a copy of the bag.
func (s *State) Values() map[string]any {
	return maps.Clone(s.values)
}

// Flush merges the bag into target.
func (s *State) Flush(target map[string]any) {
	if target == nil {
		return
	}
	maps.Copy(target, s.values)
}

// Reset empties the bag.
func (s *State) Reset() {
	clear(s.values)
}

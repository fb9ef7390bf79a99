package engine

// Settings is a nested section/key/value configuration attached to a
// workflow and copied onto its nodes. The executor consults the execution
// section; everything else is carried opaquely.
type Settings map[string]map[string]any

// Set stores a value under the given section and key, creating the section
// as needed.
func (s Settings) Set(section, key string, value any) {
	if s[section] == nil {
		s[section] = make(map[string]any)
	}
	s[section][key] = value
}

// Get retrieves the value under the given section and key.
func (s Settings) Get(section, key string) (any, bool) {
	if s[section] == nil {
		return nil, false
	}
	value, ok := s[section][key]
	return value, ok
}

// GetString retrieves a string value under the given section and key. It
// returns "" when the entry is absent or not a string.
func (s Settings) GetString(section, key string) string {
	value, ok := s.Get(section, key)
	if !ok {
		return ""
	}
	str, _ := value.(string)
	return str
}

// Clone returns a deep copy of the settings. Nodes receive clones so that
// later workflow-level edits do not leak into already-propagated state.
func (s Settings) Clone() Settings {
	clone := make(Settings, len(s))
	for section, entries := range s {
		clone[section] = make(map[string]any, len(entries))
		for key, value := range entries {
			clone[section][key] = value
		}
	}
	return clone
}

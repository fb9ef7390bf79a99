package config

import (
	"fmt"
	"sort"
	"strings"
)

// Space is a single requested output space: a template identifier (e.g.
// "MNI152Lin") or a nonstandard label (e.g. "T1w"), plus its modifiers
// (e.g. {"res": "2"}).
type Space struct {
	Name      string
	Modifiers map[string]string
}

// OutputSpaces is an ordered collection of requested output spaces.
// Declaration order is significant: it later determines the default output
// space, so it must be preserved through every transformation.
type OutputSpaces []Space

// ParseSpaces parses the command-line output-space syntax, a whitespace
// separated list of entries of the form NAME[:mod-value[:mod-value...]],
// e.g. "MNI152Lin:res-2 fsaverage:den-10k T1w". Duplicate names are
// rejected.
func ParseSpaces(raw string) (OutputSpaces, error) {
	var spaces OutputSpaces
	seen := make(map[string]bool)

	for _, entry := range strings.Fields(raw) {
		parts := strings.Split(entry, ":")
		name := parts[0]
		if name == "" {
			return nil, fmt.Errorf("empty space name in entry %q", entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("output space %q requested more than once", name)
		}
		seen[name] = true

		modifiers := make(map[string]string)
		for _, mod := range parts[1:] {
			key, value, found := strings.Cut(mod, "-")
			if !found || key == "" || value == "" {
				return nil, fmt.Errorf("malformed modifier %q in space %q", mod, name)
			}
			modifiers[key] = value
		}
		spaces = append(spaces, Space{Name: name, Modifiers: modifiers})
	}

	return spaces, nil
}

// Names returns the space names in declaration order.
func (s OutputSpaces) Names() []string {
	names := make([]string, len(s))
	for i, space := range s {
		names[i] = space.Name
	}
	return names
}

// Has reports whether a space with the given name was requested.
func (s OutputSpaces) Has(name string) bool {
	for _, space := range s {
		if space.Name == name {
			return true
		}
	}
	return false
}

// Get returns the space with the given name, if present.
func (s OutputSpaces) Get(name string) (Space, bool) {
	for _, space := range s {
		if space.Name == name {
			return space, true
		}
	}
	return Space{}, false
}

// Standard returns the template-based subset of the requested spaces,
// excluding every label in NonstandardReferences. Order is preserved.
func (s OutputSpaces) Standard() OutputSpaces {
	nonstd := make(map[string]bool, len(NonstandardReferences))
	for _, ref := range NonstandardReferences {
		nonstd[ref] = true
	}

	var std OutputSpaces
	for _, space := range s {
		if !nonstd[space.Name] {
			std = append(std, space)
		}
	}
	return std
}

// Nonstandard returns the sorted list of requested space names that are
// subject-native reference frames.
func (s OutputSpaces) Nonstandard() []string {
	nonstd := make(map[string]bool, len(NonstandardReferences))
	for _, ref := range NonstandardReferences {
		nonstd[ref] = true
	}

	var names []string
	for _, space := range s {
		if nonstd[space.Name] {
			names = append(names, space.Name)
		}
	}
	sort.Strings(names)
	return names
}

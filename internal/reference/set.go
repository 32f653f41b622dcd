// Package reference holds the immutable set of known medicines that the
// extraction validator corrects names against.
package reference

import (
	"fmt"
	"strings"

	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
)

// Set is an immutable, case-insensitive index of reference entries.
// Entries keep their load order; fuzzy-match ties resolve to the earliest.
type Set struct {
	entries   []entity.ReferenceEntry
	byName    map[string]int
	byGeneric map[string]int
}

// NewSet builds a Set, rejecting duplicate names case-insensitively.
// Generic names may repeat across entries; the earliest wins lookups.
func NewSet(entries []entity.ReferenceEntry) (*Set, error) {
	s := &Set{
		entries:   make([]entity.ReferenceEntry, 0, len(entries)),
		byName:    make(map[string]int, len(entries)),
		byGeneric: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, common.WrapError(common.ErrReferenceFormat, "entry with empty name")
		}
		key := strings.ToLower(name)
		if _, dup := s.byName[key]; dup {
			return nil, common.WrapError(common.ErrReferenceFormat, fmt.Sprintf("duplicate entry %q", name))
		}
		e.Name = name
		s.byName[key] = len(s.entries)
		if g := strings.ToLower(strings.TrimSpace(e.GenericName)); g != "" {
			if _, taken := s.byGeneric[g]; !taken {
				s.byGeneric[g] = len(s.entries)
			}
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Lookup finds an entry by exact, case-insensitive name.
func (s *Set) Lookup(name string) (*entity.ReferenceEntry, bool) {
	i, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	e := s.entries[i]
	return &e, true
}

// LookupGeneric finds an entry by exact, case-insensitive generic name.
func (s *Set) LookupGeneric(name string) (*entity.ReferenceEntry, bool) {
	i, ok := s.byGeneric[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	e := s.entries[i]
	return &e, true
}

// Entries returns the entries in load order. Callers must not mutate.
func (s *Set) Entries() []entity.ReferenceEntry {
	return s.entries
}

// Len reports the number of entries.
func (s *Set) Len() int {
	return len(s.entries)
}

// Package liveset stores the module ids enabled for live patching, one per
// line in a single file on the device.
package liveset

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/metaoverlayfs/panel/command"
)

// Set is an immutable, insertion-ordered set of module ids. The zero value
// is an empty set.
type Set struct {
	ids []string
}

// New builds a Set from ids, dropping ill-formed tokens and duplicates.
func New(ids ...string) Set {
	var s Set
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if command.ValidateModuleID(id) != nil || s.Has(id) {
			continue
		}
		s.ids = append(s.ids, id)
	}
	return s
}

// Parse reads the file format: newline-separated ids, blank lines ignored.
func Parse(text string) Set {
	return New(strings.Split(text, "\n")...)
}

// Has reports exact membership.
func (s Set) Has(id string) bool {
	return slices.Contains(s.ids, id)
}

// Len returns the number of ids.
func (s Set) Len() int {
	return len(s.ids)
}

// IDs returns the ids in insertion order.
func (s Set) IDs() []string {
	return slices.Clone(s.ids)
}

// With returns a set that also contains id, appended at the end.
func (s Set) With(id string) Set {
	if s.Has(id) {
		return s
	}
	return Set{ids: append(slices.Clone(s.ids), id)}
}

// Without returns a set with id removed and the remaining order kept.
func (s Set) Without(id string) Set {
	i := slices.Index(s.ids, id)
	if i < 0 {
		return s
	}
	return Set{ids: slices.Delete(slices.Clone(s.ids), i, i+1)}
}

// Equal reports whether both sets hold the same ids in the same order.
func (s Set) Equal(o Set) bool {
	return slices.Equal(s.ids, o.ids)
}

// String serializes the set as newline-joined ids.
func (s Set) String() string {
	return strings.Join(s.ids, "\n")
}

// MarshalJSON encodes the set as an array of ids.
func (s Set) MarshalJSON() ([]byte, error) {
	if s.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ids)
}

// UnmarshalJSON decodes an array of ids, dropping ill-formed ones.
func (s *Set) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = New(ids...)
	return nil
}

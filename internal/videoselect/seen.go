package videoselect

import "slices"

// Seen is the set of video ids already claimed by a plan. It is a value:
// With returns a new set and never modifies the receiver, so each stage
// hands its successor an explicit snapshot.
type Seen struct {
	ids map[string]struct{}
}

// NewSeen returns a set holding ids.
func NewSeen(ids ...string) Seen {
	return Seen{}.With(ids...)
}

// Has reports whether id has been claimed.
func (s Seen) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// With returns a copy of s that also holds ids.
func (s Seen) With(ids ...string) Seen {
	next := make(map[string]struct{}, len(s.ids)+len(ids))
	for id := range s.ids {
		next[id] = struct{}{}
	}
	for _, id := range ids {
		next[id] = struct{}{}
	}
	return Seen{ids: next}
}

// Len returns the number of claimed ids.
func (s Seen) Len() int {
	return len(s.ids)
}

// IDs returns the claimed ids in sorted order.
func (s Seen) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

package store

import "sort"

// Selection is the set of document ids chosen for bulk actions. All
// operations are total: they never panic, whatever the current set is.
// The owning Store keeps it consistent with the collection (a deleted
// document is evicted in the same critical section).
type Selection struct {
	ids map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle flips membership for id.
func (s *Selection) Toggle(id string) {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// SelectAll replaces the set with exactly the given visible ids.
func (s *Selection) SelectAll(visibleIDs []string) {
	s.ids = make(map[string]struct{}, len(visibleIDs))
	for _, id := range visibleIDs {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the set.
func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
}

// IsSelected reports membership.
func (s *Selection) IsSelected(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Remove drops id from the set if present.
func (s *Selection) Remove(id string) {
	delete(s.ids, id)
}

// IDs returns the members in a stable (sorted) order.
func (s *Selection) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Selection) Len() int {
	return len(s.ids)
}

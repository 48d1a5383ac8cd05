package filter

import (
	"sort"
	"strings"

	"docchain/internal/domain"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the attribute documents are ordered by.
type SortKey string

const (
	ByUpdated SortKey = "updated" // recency, defaults to descending
	ByTitle   SortKey = "title"   // locale-aware, defaults to ascending
	BySize    SortKey = "size"    // defaults to ascending
)

// Sort is one (key, direction) pair. Ties always break by id ascending so
// the same input yields the same order.
type Sort struct {
	Key       SortKey
	Ascending bool
}

// DefaultSort is recency, newest first.
func DefaultSort() Sort {
	return Sort{Key: ByUpdated, Ascending: false}
}

// ParseSort maps the wire form ("updated", "title", "size" plus an "asc"/
// "desc" direction) to a Sort, falling back to the default on unknown input.
func ParseSort(key, direction string) Sort {
	s := DefaultSort()
	switch SortKey(key) {
	case ByTitle:
		s = Sort{Key: ByTitle, Ascending: true}
	case BySize:
		s = Sort{Key: BySize, Ascending: true}
	case ByUpdated:
		s = Sort{Key: ByUpdated, Ascending: false}
	}
	switch strings.ToLower(direction) {
	case "asc":
		s.Ascending = true
	case "desc":
		s.Ascending = false
	}
	return s
}

// Apply sorts documents in place according to the spec.
func Apply(docs []domain.Document, s Sort) {
	cmp := s.comparator()
	sort.Slice(docs, func(i, j int) bool {
		return cmp(&docs[i], &docs[j]) < 0
	})
}

// comparator returns a three-way comparison honoring key, direction and the
// id tiebreak.
func (s Sort) comparator() func(a, b *domain.Document) int {
	var titles *collate.Collator
	if s.Key == ByTitle {
		titles = collate.New(language.Und)
	}

	return func(a, b *domain.Document) int {
		var c int
		switch s.Key {
		case ByTitle:
			c = titles.CompareString(a.Title, b.Title)
		case BySize:
			switch {
			case a.FileSize < b.FileSize:
				c = -1
			case a.FileSize > b.FileSize:
				c = 1
			}
		default: // ByUpdated
			switch {
			case a.UpdatedAt.Before(b.UpdatedAt):
				c = -1
			case a.UpdatedAt.After(b.UpdatedAt):
				c = 1
			}
		}

		if !s.Ascending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	}
}

// Compare exposes the three-way comparison for a single pair.
func (s Sort) Compare(a, b *domain.Document) int {
	return s.comparator()(a, b)
}

// Package filter holds the document filter and sort specifications shared by
// the client-side store (in-memory matching) and the server (query translation).
// Matching is pure: identical inputs always produce identical results.
package filter

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"docchain/internal/domain"
)

// Spec is a conjunction of optional predicates. A zero-value field means
// "no constraint on that dimension"; active dimensions compose with AND,
// values inside one dimension with OR.
type Spec struct {
	// Case-insensitive substring match against title, description and tags.
	// An empty query is no constraint, not "match nothing".
	Query string

	Types  []string // mime type allow-list
	Tags   []string // document must carry at least one
	Owners []string

	Verified     *bool
	Encrypted    *bool
	Favorite     *bool
	SharedWithMe *bool

	MinSize *int64 // bytes, inclusive
	MaxSize *int64 // bytes, inclusive

	DateFrom *time.Time // inclusive, compared against updatedAt
	DateTo   *time.Time // inclusive

	// Trashed selects the trash view. Soft-deleted documents only match
	// when it is set, and live documents never match the trash view.
	Trashed bool
}

// Matches reports whether the document passes every active dimension.
func (s *Spec) Matches(doc *domain.Document) bool {
	if doc.IsDeleted != s.Trashed {
		return false
	}

	if s.Query != "" && !matchesQuery(doc, s.Query) {
		return false
	}

	if len(s.Types) > 0 && !containsString(s.Types, doc.MimeType) {
		return false
	}

	if len(s.Tags) > 0 && !anyTagMatches(s.Tags, doc) {
		return false
	}

	if len(s.Owners) > 0 && !containsString(s.Owners, doc.OwnerID) {
		return false
	}

	if s.Verified != nil && doc.BlockchainVerified != *s.Verified {
		return false
	}
	if s.Encrypted != nil && doc.IsEncrypted != *s.Encrypted {
		return false
	}
	if s.Favorite != nil && doc.IsFavorite != *s.Favorite {
		return false
	}
	if s.SharedWithMe != nil && doc.SharedWithMe != *s.SharedWithMe {
		return false
	}

	if s.MinSize != nil && doc.FileSize < *s.MinSize {
		return false
	}
	if s.MaxSize != nil && doc.FileSize > *s.MaxSize {
		return false
	}

	if s.DateFrom != nil && doc.UpdatedAt.Before(*s.DateFrom) {
		return false
	}
	if s.DateTo != nil && doc.UpdatedAt.After(*s.DateTo) {
		return false
	}

	return true
}

// matchesQuery does a case-insensitive substring search over title,
// description and tags.
func matchesQuery(doc *domain.Document, query string) bool {
	q := strings.ToLower(query)

	if strings.Contains(strings.ToLower(doc.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Description), q) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func anyTagMatches(tags []string, doc *domain.Document) bool {
	for _, t := range tags {
		if doc.HasTag(t) {
			return true
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Values encodes the spec as URL query parameters for the documents endpoint.
func (s *Spec) Values() url.Values {
	v := url.Values{}

	if s.Query != "" {
		v.Set("q", s.Query)
	}
	for _, t := range s.Types {
		v.Add("type", t)
	}
	for _, t := range s.Tags {
		v.Add("tag", t)
	}
	for _, o := range s.Owners {
		v.Add("owner", o)
	}
	setBool(v, "verified", s.Verified)
	setBool(v, "encrypted", s.Encrypted)
	setBool(v, "favorite", s.Favorite)
	setBool(v, "shared_with_me", s.SharedWithMe)
	if s.MinSize != nil {
		v.Set("min_size", strconv.FormatInt(*s.MinSize, 10))
	}
	if s.MaxSize != nil {
		v.Set("max_size", strconv.FormatInt(*s.MaxSize, 10))
	}
	if s.DateFrom != nil {
		v.Set("date_from", s.DateFrom.UTC().Format(time.RFC3339))
	}
	if s.DateTo != nil {
		v.Set("date_to", s.DateTo.UTC().Format(time.RFC3339))
	}
	if s.Trashed {
		v.Set("trashed", "true")
	}

	return v
}

func setBool(v url.Values, key string, b *bool) {
	if b != nil {
		v.Set(key, strconv.FormatBool(*b))
	}
}

// Package store is the client-side entity store for documents: the single
// source of truth behind the list, search, favorites, shared and trash views.
// A Store is constructed once and passed to consumers explicitly; there is no
// package-level instance.
//
// Mutations are serialized by a mutex. Remote calls run outside the lock and
// their results are applied under it, gated by a per-document operation
// counter (mutations) or a generation token (fetches) so an out-of-order
// response can never resurrect older state. Stale responses are discarded
// silently, they are not errors.
package store

import (
	"context"
	goerrors "errors"
	"strings"
	"sync"
	"time"

	"docchain/client"
	"docchain/filter"
	"docchain/internal/domain"
)

// ErrEmptyTitle rejects an upload before any remote call is made.
var ErrEmptyTitle = goerrors.New("title must not be empty")

// ErrNotDeleted rejects restore on a document that is not in the trash.
var ErrNotDeleted = goerrors.New("document is not deleted")

type Store struct {
	mu  sync.Mutex
	api client.API

	docs      []domain.Document
	spec      filter.Spec
	sort      filter.Sort
	selection *Selection

	fetchEnv *Envelope
	fetchGen uint64

	// per-document monotonic operation counters
	issued  map[string]uint64
	applied map[string]uint64

	lastError string
}

func New(api client.API) *Store {
	return &Store{
		api:       api,
		sort:      filter.DefaultSort(),
		selection: NewSelection(),
		fetchEnv:  NewEnvelope(),
		issued:    make(map[string]uint64),
		applied:   make(map[string]uint64),
	}
}

// Documents returns the visible view: the collection filtered by the current
// spec and sorted by the current sort. The result is a copy, callers never
// mutate store state through it.
func (s *Store) Documents() []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := make([]domain.Document, 0, len(s.docs))
	for i := range s.docs {
		if s.spec.Matches(&s.docs[i]) {
			view = append(view, s.docs[i])
		}
	}
	filter.Apply(view, s.sort)
	return view
}

// VisibleIDs returns the ids of the visible view, in view order.
func (s *Store) VisibleIDs() []string {
	docs := s.Documents()
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// Get finds a document by id in the collection, visible or not.
func (s *Store) Get(id string) (domain.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.docs[i], true
	}
	return domain.Document{}, false
}

// SetSort changes the sort spec for derived views.
func (s *Store) SetSort(sort filter.Sort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort = sort
}

// Filter returns the active filter spec.
func (s *Store) Filter() filter.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// LastError returns the message recorded by the most recent failed
// operation, empty when the last operation succeeded.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// FetchState exposes the fetch envelope snapshot for the UI.
func (s *Store) FetchState() EnvelopeState {
	return s.fetchEnv.State()
}

// Fetch replaces the whole collection with the remote query result for spec
// (or the current spec when nil). On failure the previous collection is left
// untouched. A fetch superseded by a newer one is discarded at apply time.
func (s *Store) Fetch(ctx context.Context, spec *filter.Spec) error {
	s.mu.Lock()
	if spec != nil {
		s.spec = *spec
	}
	snapshot := s.spec
	srt := s.sort
	s.fetchGen++
	gen := s.fetchGen
	// started under the lock so envelope transitions follow generation
	// order; a superseded fetch can never flip it back to pending
	s.fetchEnv.Start()
	s.mu.Unlock()

	docs, err := s.api.ListDocuments(ctx, &snapshot, srt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.fetchGen {
		// a newer fetch owns the collection now
		return nil
	}

	if err != nil {
		msg := humanize(err)
		s.lastError = msg
		s.fetchEnv.Fail(msg)
		return err
	}

	s.docs = docs
	s.syncSelectionLocked()
	s.lastError = ""
	s.fetchEnv.Succeed()
	return nil
}

// Upload validates, streams the file, prepends the created document and then
// re-fetches so server-assigned fields are reconciled. env tracks progress
// for this one upload; pass nil if the caller does not need it.
func (s *Store) Upload(ctx context.Context, req *client.UploadRequest, env *Envelope) (*domain.Document, error) {
	if env == nil {
		env = NewEnvelope()
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, ErrEmptyTitle
	}

	env.Start()
	doc, err := s.api.Upload(ctx, req, env.SetProgress)
	if err != nil {
		msg := humanize(err)
		s.recordError(msg)
		env.Fail(msg)
		return nil, err
	}

	s.mu.Lock()
	s.docs = append([]domain.Document{*doc}, s.docs...)
	s.lastError = ""
	s.mu.Unlock()
	env.Succeed()

	// reconcile server-assigned fields; a failed refresh keeps the
	// optimistic collection and records its own error
	_ = s.Fetch(ctx, nil)

	return doc, nil
}

// Update merges a partial update into the record. No-op when the id is not
// in the collection.
func (s *Store) Update(ctx context.Context, id string, patch *client.DocumentPatch) error {
	if _, ok := s.Get(id); !ok {
		return nil
	}

	seq := s.begin(id)
	doc, err := s.api.UpdateDocument(ctx, id, patch)
	if err != nil {
		s.recordError(humanize(err))
		return err
	}

	s.apply(id, seq, func() {
		if i := s.indexOf(id); i >= 0 {
			s.docs[i] = *doc
		}
	})
	return nil
}

// Delete soft-deletes the document. The record leaves the visible collection
// and the selection set in the same critical section.
func (s *Store) Delete(ctx context.Context, id string) error {
	seq := s.begin(id)
	if err := s.api.DeleteDocument(ctx, id); err != nil {
		s.recordError(humanize(err))
		return err
	}

	s.apply(id, seq, func() {
		if i := s.indexOf(id); i >= 0 {
			now := timeNow()
			s.docs[i].IsDeleted = true
			s.docs[i].DeletedAt = &now
			s.docs[i].UpdatedAt = now
		}
		s.selection.Remove(id)
	})
	return nil
}

// DeleteMany soft-deletes a batch. Collection and selection are updated
// together, so no intermediate state is observable.
func (s *Store) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	seqs := make(map[string]uint64, len(ids))
	for _, id := range ids {
		seqs[id] = s.begin(id)
	}

	if err := s.api.BulkDeleteDocuments(ctx, ids); err != nil {
		s.recordError(humanize(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := timeNow()
	for _, id := range ids {
		if seqs[id] < s.applied[id] {
			continue // a newer operation already settled this document
		}
		s.applied[id] = seqs[id]
		if i := s.indexOf(id); i >= 0 {
			s.docs[i].IsDeleted = true
			s.docs[i].DeletedAt = &now
			s.docs[i].UpdatedAt = now
		}
		s.selection.Remove(id)
	}
	s.lastError = ""
	return nil
}

// Restore brings a trashed document back. Calling it on a live document is
// an error, restore is the only way out of the deleted state besides
// permanent deletion.
func (s *Store) Restore(ctx context.Context, id string) error {
	doc, ok := s.Get(id)
	if !ok || !doc.IsDeleted {
		return ErrNotDeleted
	}

	seq := s.begin(id)
	restored, err := s.api.RestoreDocument(ctx, id)
	if err != nil {
		s.recordError(humanize(err))
		return err
	}

	s.apply(id, seq, func() {
		if i := s.indexOf(id); i >= 0 {
			s.docs[i] = *restored
		}
	})
	return nil
}

// PermanentDelete removes the record entirely. Irreversible.
func (s *Store) PermanentDelete(ctx context.Context, id string) error {
	seq := s.begin(id)
	if err := s.api.PermanentDeleteDocument(ctx, id); err != nil {
		s.recordError(humanize(err))
		return err
	}

	s.apply(id, seq, func() {
		if i := s.indexOf(id); i >= 0 {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
		}
		s.selection.Remove(id)
	})
	return nil
}

// ToggleFavorite flips the flag optimistically, then confirms with the
// server. On failure the flip is rolled back and the error surfaced.
func (s *Store) ToggleFavorite(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	seq := s.issued[id] + 1
	s.issued[id] = seq
	s.applied[id] = seq // the optimistic flip is applied right away
	target := !s.docs[i].IsFavorite
	s.docs[i].IsFavorite = target
	s.mu.Unlock()

	err := s.api.SetFavorite(ctx, id, target)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// roll back unless a newer operation already owns the document
		if s.applied[id] == seq {
			if j := s.indexOf(id); j >= 0 {
				s.docs[j].IsFavorite = !target
			}
		}
		s.lastError = humanize(err)
		return err
	}
	s.lastError = ""
	return nil
}

// VerifyBlockchain asks the server to anchor the document hash. Only the one
// document is touched, verification never blocks operations on others.
func (s *Store) VerifyBlockchain(ctx context.Context, id string) error {
	seq := s.begin(id)
	outcome, err := s.api.VerifyDocument(ctx, id)
	if err != nil {
		s.recordError(humanize(err))
		return err
	}

	s.apply(id, seq, func() {
		if i := s.indexOf(id); i >= 0 && outcome.Verified {
			s.docs[i].BlockchainVerified = true
			s.docs[i].BlockchainHash = outcome.BlockchainHash
		}
	})
	return nil
}

// Selection operations, delegated under the store lock so eviction on
// delete and user toggles can never interleave.

func (s *Store) ToggleSelect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 && !s.selection.IsSelected(id) {
		return // never select an id missing from the collection
	}
	s.selection.Toggle(id)
}

func (s *Store) SelectAll(visibleIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SelectAll(visibleIDs)
	s.syncSelectionLocked()
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Clear()
}

func (s *Store) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IsSelected(id)
}

func (s *Store) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IDs()
}

// begin issues the next operation counter for a document.
func (s *Store) begin(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[id]++
	return s.issued[id]
}

// apply runs fn under the lock unless a newer operation for the document
// already applied, in which case the response is stale and dropped.
func (s *Store) apply(id string, seq uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied[id] {
		return
	}
	s.applied[id] = seq
	fn()
	s.lastError = ""
}

func (s *Store) recordError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(id string) int {
	for i := range s.docs {
		if s.docs[i].ID == id {
			return i
		}
	}
	return -1
}

// syncSelectionLocked evicts selected ids that are no longer in the
// collection. Must be called with the lock held.
func (s *Store) syncSelectionLocked() {
	for _, id := range s.selection.IDs() {
		if s.indexOf(id) < 0 {
			s.selection.Remove(id)
		}
	}
}

func timeNow() time.Time {
	return time.Now().UTC()
}

// humanize prefers the server-provided message for API errors.
func humanize(err error) string {
	var apiErr *client.Error
	if goerrors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

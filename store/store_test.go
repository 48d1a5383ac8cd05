package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"docchain/client"
	"docchain/filter"
	"docchain/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements client.API with overridable hooks. Hooks left nil
// succeed with zero values.
type fakeAPI struct {
	listFn     func(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error)
	uploadFn   func(ctx context.Context, req *client.UploadRequest, onProgress func(int)) (*domain.Document, error)
	updateFn   func(ctx context.Context, id string, patch *client.DocumentPatch) (*domain.Document, error)
	deleteFn   func(ctx context.Context, id string) error
	bulkFn     func(ctx context.Context, ids []string) error
	restoreFn  func(ctx context.Context, id string) (*domain.Document, error)
	permFn     func(ctx context.Context, id string) error
	verifyFn   func(ctx context.Context, id string) (*client.VerifyOutcome, error)
	favoriteFn func(ctx context.Context, id string, favorite bool) error
}

func (f *fakeAPI) ListDocuments(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
	if f.listFn != nil {
		return f.listFn(ctx, spec, sort)
	}
	return nil, nil
}

func (f *fakeAPI) Upload(ctx context.Context, req *client.UploadRequest, onProgress func(int)) (*domain.Document, error) {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, req, onProgress)
	}
	return &domain.Document{ID: "new", Title: req.Title}, nil
}

func (f *fakeAPI) UpdateDocument(ctx context.Context, id string, patch *client.DocumentPatch) (*domain.Document, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, patch)
	}
	return &domain.Document{ID: id}, nil
}

func (f *fakeAPI) DeleteDocument(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeAPI) BulkDeleteDocuments(ctx context.Context, ids []string) error {
	if f.bulkFn != nil {
		return f.bulkFn(ctx, ids)
	}
	return nil
}

func (f *fakeAPI) RestoreDocument(ctx context.Context, id string) (*domain.Document, error) {
	if f.restoreFn != nil {
		return f.restoreFn(ctx, id)
	}
	return &domain.Document{ID: id}, nil
}

func (f *fakeAPI) PermanentDeleteDocument(ctx context.Context, id string) error {
	if f.permFn != nil {
		return f.permFn(ctx, id)
	}
	return nil
}

func (f *fakeAPI) VerifyDocument(ctx context.Context, id string) (*client.VerifyOutcome, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, id)
	}
	return &client.VerifyOutcome{Verified: true}, nil
}

func (f *fakeAPI) SetFavorite(ctx context.Context, id string, favorite bool) error {
	if f.favoriteFn != nil {
		return f.favoriteFn(ctx, id, favorite)
	}
	return nil
}

func seededStore(t *testing.T, docs ...domain.Document) (*Store, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{
		listFn: func(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
			return docs, nil
		},
	}
	s := New(api)
	require.NoError(t, s.Fetch(context.Background(), nil))
	return s, api
}

func threeDocs() []domain.Document {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Document{
		{ID: "1", Title: "Contract", FileSize: 1000, UpdatedAt: base.Add(time.Hour)},
		{ID: "2", Title: "Report", FileSize: 5000, UpdatedAt: base.Add(2 * time.Hour)},
		{ID: "3", Title: "Notes", FileSize: 10, UpdatedAt: base.Add(3 * time.Hour)},
	}
}

func TestFetch_ReplacesCollection(t *testing.T) {
	s, _ := seededStore(t, threeDocs()...)

	assert.Len(t, s.Documents(), 3)
	assert.Equal(t, StatusSuccess, s.FetchState().Status)
	assert.Empty(t, s.LastError())
}

func TestFetch_FailureKeepsCollection(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)

	api.listFn = func(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
		return nil, &client.Error{Status: 500, Message: "database unavailable"}
	}

	err := s.Fetch(context.Background(), nil)
	require.Error(t, err)
	assert.Len(t, s.Documents(), 3, "previous collection survives a failed fetch")
	assert.Equal(t, "database unavailable", s.LastError())
	assert.Equal(t, StatusError, s.FetchState().Status)
}

// TestFetch_StaleResponseDiscarded issues fetch A, lets a later fetch B win
// the race, then resolves A. The collection must reflect B.
func TestFetch_StaleResponseDiscarded(t *testing.T) {
	aEntered := make(chan struct{})
	aRelease := make(chan struct{})

	resultA := []domain.Document{{ID: "a", Title: "Old"}}
	resultB := []domain.Document{{ID: "b", Title: "New"}}

	first := true
	api := &fakeAPI{}
	api.listFn = func(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
		if first {
			first = false
			close(aEntered)
			<-aRelease
			return resultA, nil
		}
		return resultB, nil
	}

	s := New(api)

	done := make(chan error, 1)
	go func() {
		done <- s.Fetch(context.Background(), &filter.Spec{Query: "old"})
	}()

	<-aEntered
	require.NoError(t, s.Fetch(context.Background(), &filter.Spec{Query: "new"}))

	close(aRelease)
	require.NoError(t, <-done)

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID, "stale fetch must not overwrite the newer result")
	assert.Equal(t, filter.Spec{Query: "new"}, s.Filter())
	assert.Equal(t, StatusSuccess, s.FetchState().Status, "winning fetch settled the envelope")
}

// TestFetch_ConcurrentFetchesSettleEnvelope hammers Fetch from several
// goroutines; once every call has returned the envelope must be settled,
// never left pending
func TestFetch_ConcurrentFetchesSettleEnvelope(t *testing.T) {
	s := New(&fakeAPI{})

	for range 500 {
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Fetch(context.Background(), nil)
			}()
		}
		wg.Wait()

		require.Equal(t, StatusSuccess, s.FetchState().Status)
	}
}

func TestUpload_RejectsEmptyTitle(t *testing.T) {
	called := false
	api := &fakeAPI{
		uploadFn: func(ctx context.Context, req *client.UploadRequest, onProgress func(int)) (*domain.Document, error) {
			called = true
			return nil, nil
		},
	}
	s := New(api)

	_, err := s.Upload(context.Background(), &client.UploadRequest{Title: "   "}, nil)
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.False(t, called, "validation must fail before any remote call")
}

func TestUpload_PrependsDocument(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)
	created := domain.Document{ID: "4", Title: "Invoice", UpdatedAt: time.Now().UTC()}
	api.uploadFn = func(ctx context.Context, req *client.UploadRequest, onProgress func(int)) (*domain.Document, error) {
		return &created, nil
	}
	// the reconcile fetch returns the server view including the new document
	api.listFn = func(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
		return append([]domain.Document{created}, threeDocs()...), nil
	}

	env := NewEnvelope()
	doc, err := s.Upload(context.Background(), &client.UploadRequest{
		Title:    "Invoice",
		FileName: "invoice.pdf",
		Content:  strings.NewReader("pdf bytes"),
	}, env)
	require.NoError(t, err)
	assert.Equal(t, "4", doc.ID)
	assert.Len(t, s.Documents(), 4)
	assert.Equal(t, StatusSuccess, env.State().Status)
	assert.Equal(t, 100, env.State().Progress)
}

func TestUpload_FailureRecordsError(t *testing.T) {
	api := &fakeAPI{
		uploadFn: func(ctx context.Context, req *client.UploadRequest, onProgress func(int)) (*domain.Document, error) {
			return nil, &client.Error{Status: 413, Message: "file too large"}
		},
	}
	s := New(api)

	env := NewEnvelope()
	_, err := s.Upload(context.Background(), &client.UploadRequest{Title: "Big"}, env)
	require.Error(t, err)

	state := env.State()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "file too large", state.Error)
	assert.Equal(t, "file too large", s.LastError())
	assert.Empty(t, s.Documents())
}

func TestUpdate_MissingIDIsNoOp(t *testing.T) {
	called := false
	api := &fakeAPI{
		updateFn: func(ctx context.Context, id string, patch *client.DocumentPatch) (*domain.Document, error) {
			called = true
			return nil, nil
		},
	}
	s := New(api)

	title := "Renamed"
	err := s.Update(context.Background(), "ghost", &client.DocumentPatch{Title: &title})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestUpdate_MergesServerRecord(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)
	api.updateFn = func(ctx context.Context, id string, patch *client.DocumentPatch) (*domain.Document, error) {
		return &domain.Document{ID: id, Title: *patch.Title, UpdatedAt: time.Now().UTC()}, nil
	}

	title := "Contract v2"
	require.NoError(t, s.Update(context.Background(), "1", &client.DocumentPatch{Title: &title}))

	doc, ok := s.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Contract v2", doc.Title)
}

// TestDelete_SoftDeleteAndSelectionEviction covers eviction of a deleted
// document from the selection set
func TestDelete_SoftDeleteAndSelectionEviction(t *testing.T) {
	s, _ := seededStore(t, threeDocs()...)
	s.ToggleSelect("1")
	s.ToggleSelect("2")

	require.NoError(t, s.Delete(context.Background(), "1"))

	doc, ok := s.Get("1")
	require.True(t, ok, "soft delete keeps the record")
	assert.True(t, doc.IsDeleted)
	require.NotNil(t, doc.DeletedAt)

	assert.Equal(t, []string{"2"}, s.SelectedIDs())
	assert.NotContains(t, s.VisibleIDs(), "1", "deleted documents leave the default view")
}

func TestDelete_RemoteFailureLeavesState(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)
	api.deleteFn = func(ctx context.Context, id string) error {
		return errors.New("connection reset")
	}

	require.Error(t, s.Delete(context.Background(), "1"))

	doc, _ := s.Get("1")
	assert.False(t, doc.IsDeleted)
	assert.Equal(t, "connection reset", s.LastError())
}

// TestDeleteMany_SelectionScenario: selection {1,3}, deleteMany [1,2],
// remaining selection must be exactly {3}
func TestDeleteMany_SelectionScenario(t *testing.T) {
	s, _ := seededStore(t, threeDocs()...)
	s.ToggleSelect("1")
	s.ToggleSelect("3")

	require.NoError(t, s.DeleteMany(context.Background(), []string{"1", "2"}))

	assert.Equal(t, []string{"3"}, s.SelectedIDs())
	for _, id := range []string{"1", "2"} {
		doc, ok := s.Get(id)
		require.True(t, ok)
		assert.True(t, doc.IsDeleted, "doc %s", id)
	}
	doc3, _ := s.Get("3")
	assert.False(t, doc3.IsDeleted)
}

func TestDeleteMany_EmptyIsNoOp(t *testing.T) {
	called := false
	api := &fakeAPI{
		bulkFn: func(ctx context.Context, ids []string) error {
			called = true
			return nil
		},
	}
	s := New(api)

	assert.NoError(t, s.DeleteMany(context.Background(), nil))
	assert.False(t, called)
}

// TestRestore_RoundTrip deletes then restores and expects the live record back
func TestRestore_RoundTrip(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)
	api.restoreFn = func(ctx context.Context, id string) (*domain.Document, error) {
		return &domain.Document{ID: id, Title: "Contract", UpdatedAt: time.Now().UTC()}, nil
	}

	require.NoError(t, s.Delete(context.Background(), "1"))
	require.NoError(t, s.Restore(context.Background(), "1"))

	doc, ok := s.Get("1")
	require.True(t, ok)
	assert.False(t, doc.IsDeleted)
	assert.Nil(t, doc.DeletedAt)
	assert.Contains(t, s.VisibleIDs(), "1")
}

func TestRestore_LiveDocumentRejected(t *testing.T) {
	s, _ := seededStore(t, threeDocs()...)

	assert.ErrorIs(t, s.Restore(context.Background(), "1"), ErrNotDeleted)
	assert.ErrorIs(t, s.Restore(context.Background(), "ghost"), ErrNotDeleted)
}

func TestPermanentDelete_RemovesRecord(t *testing.T) {
	s, _ := seededStore(t, threeDocs()...)
	s.ToggleSelect("2")

	require.NoError(t, s.PermanentDelete(context.Background(), "2"))

	_, ok := s.Get("2")
	assert.False(t, ok)
	assert.Empty(t, s.SelectedIDs())
	assert.Len(t, s.Documents(), 2)
}

func TestToggleFavorite_FlipsOptimistically(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)

	var sent []bool
	api.favoriteFn = func(ctx context.Context, id string, favorite bool) error {
		sent = append(sent, favorite)
		return nil
	}

	require.NoError(t, s.ToggleFavorite(context.Background(), "1"))
	doc, _ := s.Get("1")
	assert.True(t, doc.IsFavorite)

	require.NoError(t, s.ToggleFavorite(context.Background(), "1"))
	doc, _ = s.Get("1")
	assert.False(t, doc.IsFavorite, "toggling twice lands on the original state")

	assert.Equal(t, []bool{true, false}, sent)
}

// TestToggleFavorite_RollbackOnFailure verifies a failed toggle does not leave
// the local flag out of sync with the server
func TestToggleFavorite_RollbackOnFailure(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)
	api.favoriteFn = func(ctx context.Context, id string, favorite bool) error {
		return &client.Error{Status: 500, Message: "favorite failed"}
	}

	require.Error(t, s.ToggleFavorite(context.Background(), "1"))

	doc, _ := s.Get("1")
	assert.False(t, doc.IsFavorite, "flip must be rolled back")
	assert.Equal(t, "favorite failed", s.LastError())
}

func TestToggleFavorite_MissingIDIsNoOp(t *testing.T) {
	called := false
	api := &fakeAPI{
		favoriteFn: func(ctx context.Context, id string, favorite bool) error {
			called = true
			return nil
		},
	}
	s := New(api)

	assert.NoError(t, s.ToggleFavorite(context.Background(), "ghost"))
	assert.False(t, called)
}

func TestVerifyBlockchain_MarksOnlyTarget(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)
	api.verifyFn = func(ctx context.Context, id string) (*client.VerifyOutcome, error) {
		return &client.VerifyOutcome{Verified: true, BlockchainHash: "abc123", TxID: "tx-9"}, nil
	}

	require.NoError(t, s.VerifyBlockchain(context.Background(), "2"))

	doc, _ := s.Get("2")
	assert.True(t, doc.BlockchainVerified)
	assert.Equal(t, "abc123", doc.BlockchainHash)

	other, _ := s.Get("1")
	assert.False(t, other.BlockchainVerified)
}

func TestToggleSelect_UnknownIDIgnored(t *testing.T) {
	s, _ := seededStore(t, threeDocs()...)

	s.ToggleSelect("ghost")
	assert.Empty(t, s.SelectedIDs())

	s.ToggleSelect("1")
	assert.Equal(t, []string{"1"}, s.SelectedIDs())
}

func TestSelectAll_ThenFilterEvictsMissing(t *testing.T) {
	s, api := seededStore(t, threeDocs()...)
	s.SelectAll(s.VisibleIDs())
	assert.Len(t, s.SelectedIDs(), 3)

	// narrower refetch drops documents 1 and 3 from the collection
	api.listFn = func(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
		return threeDocs()[1:2], nil
	}
	require.NoError(t, s.Fetch(context.Background(), &filter.Spec{Query: "report"}))

	assert.Equal(t, []string{"2"}, s.SelectedIDs())
}

// TestDocuments_AppliesFilterAndSort checks the derived view honors the
// active spec and sort without touching the underlying collection
func TestDocuments_AppliesFilterAndSort(t *testing.T) {
	s, _ := seededStore(t, threeDocs()...)
	s.SetSort(filter.Sort{Key: filter.BySize, Ascending: true})

	view := s.Documents()
	require.Len(t, view, 3)
	assert.Equal(t, []string{"3", "1", "2"}, []string{view[0].ID, view[1].ID, view[2].ID})

	view[0].Title = "mutated"
	fresh, _ := s.Get("3")
	assert.Equal(t, "Notes", fresh.Title, "views are copies")
}

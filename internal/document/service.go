package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	defError "errors"
	"fmt"
	"io"
	"time"

	"docchain/filter"
	"docchain/internal/cache"
	"docchain/internal/domain"
	"docchain/internal/errors"
	"docchain/internal/ledger"
	"docchain/internal/storage"
	"docchain/internal/worker"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchain_documents_uploaded_total",
		Help: "Number of documents uploaded.",
	})
	verifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchain_documents_verified_total",
		Help: "Number of successful ledger verifications.",
	})
	trashedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchain_documents_trashed_total",
		Help: "Number of documents soft-deleted.",
	})
)

type Service interface {
	ListDocuments(ctx context.Context, viewerID string, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error)
	UploadDocument(ctx context.Context, ownerID string, req *UploadRequest) (*domain.Document, error)
	UpdateDocument(ctx context.Context, docID, userID string, patch *UpdatePatch) (*domain.Document, error)
	DeleteDocument(ctx context.Context, docID, userID string) error
	BulkDeleteDocuments(ctx context.Context, userID string, ids []string) error
	RestoreDocument(ctx context.Context, docID, userID string) (*domain.Document, error)
	PermanentDeleteDocument(ctx context.Context, docID, userID string) error
	SetFavorite(ctx context.Context, docID, userID string, favorite bool) error
	VerifyDocument(ctx context.Context, docID, userID string) (*VerifyResult, error)
	GetProof(ctx context.Context, docID, userID string) (*VerifyResult, error)
	ListShares(ctx context.Context, docID, requesterID string) ([]ShareDTO, error)
	AddShare(ctx context.Context, docID, requesterID, targetUserID, role string) (*ShareDTO, error)
	RemoveShare(ctx context.Context, docID, requesterID, targetUserID string) error
}

type UserProvider interface {
	GetUserByID(id string) (*domain.User, error)
}

type DefaultService struct {
	repository   DocumentRepository
	userProvider UserProvider
	blobs        storage.BlobStore
	ledger       ledger.Client
	cache        *cache.Cache
	pool         *worker.WorkerPool
}

func NewService(
	repository DocumentRepository,
	userProvider UserProvider,
	blobs storage.BlobStore,
	ledgerClient ledger.Client,
	c *cache.Cache,
	pool *worker.WorkerPool,
) Service {
	return &DefaultService{
		repository:   repository,
		userProvider: userProvider,
		blobs:        blobs,
		ledger:       ledgerClient,
		cache:        c,
		pool:         pool,
	}
}

func (s *DefaultService) ListDocuments(ctx context.Context, viewerID string, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
	// Get the current data version for this user's documents
	versionKey := fmt.Sprintf("user:%s:docs:version", viewerID)
	v := s.cache.GetVersion(ctx, versionKey)

	cacheKey := fmt.Sprintf("docs:u:%s:v:%d:f:%s:s:%s:%v",
		viewerID, v, spec.Values().Encode(), sort.Key, sort.Ascending)

	var result []domain.Document
	// get data from cache
	found, _ := s.cache.Get(ctx, cacheKey, &result)
	if found {
		return result, nil
	}

	result, err := s.repository.List(ctx, viewerID, spec, sort)
	if err != nil {
		return nil, err
	}
	// set value to cache
	go s.cache.Set(context.Background(), cacheKey, result, 24*time.Hour)

	return result, nil
}

// UploadRequest carries the multipart upload payload.
type UploadRequest struct {
	Title       string
	Description string
	Tags        []string
	IsEncrypted bool
	FileName    string
	FileSize    int64
	MimeType    string
	Content     io.Reader
}

func (s *DefaultService) UploadDocument(ctx context.Context, ownerID string, req *UploadRequest) (*domain.Document, error) {
	if req.Title == "" {
		return nil, errors.BadRequest("Title cannot be empty", nil)
	}
	if req.FileSize < 0 {
		return nil, errors.BadRequest("Invalid file size", nil)
	}

	key := storage.NewStorageKey(ownerID)

	// hash the content while it streams to object storage
	hasher := sha256.New()
	body := io.TeeReader(req.Content, hasher)
	if err := s.blobs.Put(ctx, key, body, req.FileSize, req.MimeType); err != nil {
		return nil, errors.Internal(err)
	}

	doc := &domain.Document{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Description:    req.Description,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		MimeType:       req.MimeType,
		OwnerID:        ownerID,
		Tags:           req.Tags,
		IsEncrypted:    req.IsEncrypted,
		BlockchainHash: hex.EncodeToString(hasher.Sum(nil)),
		StorageKey:     key,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	if err := s.repository.Create(ctx, doc); err != nil {
		return nil, err
	}

	uploadsTotal.Inc()
	s.bumpVersion(ctx, ownerID)

	if owner, err := s.userProvider.GetUserByID(ownerID); err == nil {
		snapshot := owner.ToSafeUser()
		doc.Owner = &snapshot
	}

	return doc, nil
}

// UpdatePatch is a partial document update. Nil fields are left untouched.
type UpdatePatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	IsEncrypted *bool     `json:"isEncrypted"`
}

func (s *DefaultService) UpdateDocument(ctx context.Context, docID, userID string, patch *UpdatePatch) (*domain.Document, error) {
	if err := s.requireEditor(ctx, docID, userID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, errors.BadRequest("Title cannot be empty", nil)
		}
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Tags != nil {
		updates["tags"] = *patch.Tags
	}
	if patch.IsEncrypted != nil {
		updates["is_encrypted"] = *patch.IsEncrypted
	}

	doc, err := s.repository.Update(ctx, docID, updates)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}

	s.bumpVersion(ctx, doc.OwnerID)
	return doc, nil
}

func (s *DefaultService) DeleteDocument(ctx context.Context, docID, userID string) error {
	doc, err := s.requireOwner(ctx, docID, userID)
	if err != nil {
		return err
	}

	if err := s.repository.SoftDelete(ctx, docID); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return err
	}

	trashedTotal.Inc()
	s.bumpVersion(ctx, doc.OwnerID)
	return nil
}

func (s *DefaultService) BulkDeleteDocuments(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return errors.BadRequest("No document ids given", nil)
	}

	// ownership is enforced inside the transaction, documents the caller
	// does not own are skipped rather than failing the batch
	if err := s.repository.BulkSoftDelete(ctx, userID, ids); err != nil {
		return err
	}

	s.bumpVersion(ctx, userID)
	return nil
}

func (s *DefaultService) RestoreDocument(ctx context.Context, docID, userID string) (*domain.Document, error) {
	if _, err := s.requireOwner(ctx, docID, userID); err != nil {
		return nil, err
	}

	doc, err := s.repository.Restore(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.UnprocessableEntity("Document is not in trash", err)
		}
		return nil, err
	}

	s.bumpVersion(ctx, doc.OwnerID)
	return doc, nil
}

func (s *DefaultService) PermanentDeleteDocument(ctx context.Context, docID, userID string) error {
	doc, err := s.requireOwner(ctx, docID, userID)
	if err != nil {
		return err
	}
	if !doc.IsDeleted {
		return errors.UnprocessableEntity("Document must be trashed first", nil)
	}

	if err := s.repository.PermanentDelete(ctx, docID); err != nil {
		return err
	}

	s.bumpVersion(ctx, doc.OwnerID)

	// remove the stored object in the background, the record is already gone
	key := doc.StorageKey
	s.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return s.blobs.Delete(ctx, key)
	})

	return nil
}

func (s *DefaultService) SetFavorite(ctx context.Context, docID, userID string, favorite bool) error {
	doc, err := s.requireAccess(ctx, docID, userID)
	if err != nil {
		return err
	}

	if err := s.repository.SetFavorite(ctx, docID, favorite); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return err
	}

	s.bumpVersion(ctx, doc.OwnerID)
	return nil
}

type VerifyResult struct {
	Verified       bool   `json:"verified"`
	BlockchainHash string `json:"blockchainHash"`
	TxID           string `json:"txId,omitempty"`
}

// VerifyDocument anchors the stored content hash on the ledger service and
// marks the document verified on success. Verification of one document never
// blocks operations on another.
func (s *DefaultService) VerifyDocument(ctx context.Context, docID, userID string) (*VerifyResult, error) {
	doc, err := s.requireAccess(ctx, docID, userID)
	if err != nil {
		return nil, err
	}

	hash := doc.BlockchainHash
	if hash == "" {
		hash, err = s.hashStoredContent(ctx, doc.StorageKey)
		if err != nil {
			return nil, errors.Internal(err)
		}
	}

	result, err := s.ledger.Anchor(ctx, docID, hash)
	if err != nil {
		// document state is left unchanged on ledger failure
		return nil, errors.UnprocessableEntity("Verification failed", err)
	}

	if result.Verified {
		if err := s.repository.MarkVerified(ctx, docID, hash); err != nil {
			return nil, err
		}
		verifiedTotal.Inc()
		s.bumpVersion(ctx, doc.OwnerID)
	}

	return &VerifyResult{
		Verified:       result.Verified,
		BlockchainHash: hash,
		TxID:           result.TxID,
	}, nil
}

// GetProof returns the anchor recorded on the ledger for a document.
func (s *DefaultService) GetProof(ctx context.Context, docID, userID string) (*VerifyResult, error) {
	if _, err := s.requireAccess(ctx, docID, userID); err != nil {
		return nil, err
	}

	result, err := s.ledger.Proof(ctx, docID)
	if err != nil {
		return nil, errors.NotFound("No anchor recorded for document", err)
	}

	return &VerifyResult{
		Verified:       result.Verified,
		BlockchainHash: result.Hash,
		TxID:           result.TxID,
	}, nil
}

func (s *DefaultService) hashStoredContent(ctx context.Context, key string) (string, error) {
	body, err := s.blobs.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, body); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

type ShareDTO struct {
	User domain.SafeUser `json:"user"`
	Role string          `json:"role"`
}

func (s *DefaultService) ListShares(ctx context.Context, docID, requesterID string) ([]ShareDTO, error) {
	if _, err := s.requireAccess(ctx, docID, requesterID); err != nil {
		return nil, err
	}

	shares, err := s.repository.ListShares(ctx, docID)
	if err != nil {
		return nil, err
	}

	result := make([]ShareDTO, 0, len(shares))
	for _, sh := range shares {
		user, err := s.userProvider.GetUserByID(sh.UserID)
		if err != nil {
			continue
		}
		result = append(result, ShareDTO{User: user.ToSafeUser(), Role: sh.Role})
	}

	return result, nil
}

func (s *DefaultService) AddShare(ctx context.Context, docID, requesterID, targetUserID, role string) (*ShareDTO, error) {
	if _, err := s.requireOwner(ctx, docID, requesterID); err != nil {
		return nil, err
	}

	// Prevent self-share
	if requesterID == targetUserID {
		return nil, errors.UnprocessableEntity("Can't share with yourself!", nil)
	}

	// Ensure target user exists
	target, err := s.userProvider.GetUserByID(targetUserID)
	if err != nil {
		return nil, errors.UnprocessableEntity("Can't find user!", err)
	}

	share := &domain.Share{
		ID:          uuid.NewString(),
		DocumentID:  docID,
		UserID:      targetUserID,
		GrantedByID: requesterID,
		Role:        role,
	}
	if err := s.repository.AddShare(ctx, share); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Conflict("Document already shared with user!", err)
		}
		return nil, err
	}

	s.reconcileShareCount(docID)
	s.bumpVersion(ctx, requesterID)
	s.bumpVersion(ctx, targetUserID)

	return &ShareDTO{User: target.ToSafeUser(), Role: role}, nil
}

func (s *DefaultService) RemoveShare(ctx context.Context, docID, requesterID, targetUserID string) error {
	if _, err := s.requireOwner(ctx, docID, requesterID); err != nil {
		return err
	}

	// Ensure the share exists
	if _, err := s.repository.FindShare(ctx, docID, targetUserID); err != nil {
		return errors.UnprocessableEntity("Document is not shared with user", err)
	}

	if err := s.repository.RemoveShare(ctx, docID, targetUserID); err != nil {
		return err
	}

	s.reconcileShareCount(docID)
	s.bumpVersion(ctx, requesterID)
	s.bumpVersion(ctx, targetUserID)

	return nil
}

// reconcileShareCount keeps shareCount eventually consistent with the shares
// table without blocking the request.
func (s *DefaultService) reconcileShareCount(docID string) {
	s.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.repository.RecountShares(ctx, docID)
	})
}

func (s *DefaultService) bumpVersion(ctx context.Context, userID string) {
	// increase cache key, so any new fetch will get new version
	versionKey := fmt.Sprintf("user:%s:docs:version", userID)
	s.cache.IncrementVersion(ctx, versionKey)
}

func (s *DefaultService) requireOwner(ctx context.Context, docID, userID string) (*domain.Document, error) {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}
	if doc.OwnerID != userID {
		return nil, errors.Forbidden("Only the owner can do this", nil)
	}
	return doc, nil
}

func (s *DefaultService) requireEditor(ctx context.Context, docID, userID string) error {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return err
	}
	if doc.OwnerID == userID {
		return nil
	}

	share, err := s.repository.FindShare(ctx, docID, userID)
	if err != nil || share.Role != "editor" {
		return errors.Forbidden("Editor access required", err)
	}
	return nil
}

func (s *DefaultService) requireAccess(ctx context.Context, docID, userID string) (*domain.Document, error) {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}
	if doc.OwnerID == userID {
		return doc, nil
	}
	if _, err := s.repository.FindShare(ctx, docID, userID); err != nil {
		return nil, errors.Forbidden("No access to this document", err)
	}
	return doc, nil
}

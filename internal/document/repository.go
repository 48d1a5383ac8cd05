package document

import (
	"context"
	"time"

	"docchain/filter"
	"docchain/internal/domain"

	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	FindByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, viewerID string, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error)
	Update(ctx context.Context, id string, updates map[string]any) (*domain.Document, error)
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) (*domain.Document, error)
	PermanentDelete(ctx context.Context, id string) error
	BulkSoftDelete(ctx context.Context, ownerID string, ids []string) error
	SetFavorite(ctx context.Context, id string, favorite bool) error
	MarkVerified(ctx context.Context, id string, hash string) error
	ListShares(ctx context.Context, docID string) ([]domain.Share, error)
	FindShare(ctx context.Context, docID, userID string) (*domain.Share, error)
	AddShare(ctx context.Context, share *domain.Share) error
	RemoveShare(ctx context.Context, docID, userID string) error
	RecountShares(ctx context.Context, docID string) error
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new document repository
func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC() // Use UTC for consistency
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List translates the filter spec to WHERE clauses and returns the viewer's
// visible documents in the requested order. The per-viewer fields (owner
// snapshot, sharedWithMe) are filled in before returning.
func (r *DocumentRepositoryImpl) List(ctx context.Context, viewerID string, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
	sharedIDs := r.db.Model(&domain.Share{}).
		Select("document_id").
		Where("user_id = ?", viewerID)

	query := r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("is_deleted = ?", spec.Trashed).
		Where("owner_id = ? OR id IN (?)", viewerID, sharedIDs)

	if spec.Query != "" {
		like := "%" + spec.Query + "%"
		query = query.Where(
			"title ILIKE ? OR description ILIKE ? OR tags::text ILIKE ?",
			like, like, like,
		)
	}

	if len(spec.Types) > 0 {
		query = query.Where("mime_type IN ?", spec.Types)
	}

	if len(spec.Tags) > 0 {
		// tags column is a JSON array, any listed tag may match
		tagQuery := r.db.Where("tags::text ILIKE ?", tagPattern(spec.Tags[0]))
		for _, t := range spec.Tags[1:] {
			tagQuery = tagQuery.Or("tags::text ILIKE ?", tagPattern(t))
		}
		query = query.Where(tagQuery)
	}

	if len(spec.Owners) > 0 {
		query = query.Where("owner_id IN ?", spec.Owners)
	}

	if spec.Verified != nil {
		query = query.Where("blockchain_verified = ?", *spec.Verified)
	}
	if spec.Encrypted != nil {
		query = query.Where("is_encrypted = ?", *spec.Encrypted)
	}
	if spec.Favorite != nil {
		query = query.Where("is_favorite = ?", *spec.Favorite)
	}
	if spec.SharedWithMe != nil {
		if *spec.SharedWithMe {
			query = query.Where("id IN (?)", sharedIDs)
		} else {
			query = query.Where("id NOT IN (?)", sharedIDs)
		}
	}

	if spec.MinSize != nil {
		query = query.Where("file_size >= ?", *spec.MinSize)
	}
	if spec.MaxSize != nil {
		query = query.Where("file_size <= ?", *spec.MaxSize)
	}

	if spec.DateFrom != nil {
		query = query.Where("updated_at >= ?", *spec.DateFrom)
	}
	if spec.DateTo != nil {
		query = query.Where("updated_at <= ?", *spec.DateTo)
	}

	var docs []domain.Document
	if err := query.Order(orderClause(sort)).Find(&docs).Error; err != nil {
		return nil, err
	}

	if err := r.decorate(ctx, viewerID, docs); err != nil {
		return nil, err
	}

	return docs, nil
}

func tagPattern(tag string) string {
	return `%"` + tag + `"%`
}

func orderClause(sort filter.Sort) string {
	dir := "DESC"
	if sort.Ascending {
		dir = "ASC"
	}
	switch sort.Key {
	case filter.ByTitle:
		return "LOWER(title) " + dir + ", id ASC"
	case filter.BySize:
		return "file_size " + dir + ", id ASC"
	default:
		return "updated_at " + dir + ", id ASC"
	}
}

// decorate fills in owner snapshots and the per-viewer sharedWithMe flag.
func (r *DocumentRepositoryImpl) decorate(ctx context.Context, viewerID string, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ownerIDs := make([]string, 0, len(docs))
	docIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		ownerIDs = append(ownerIDs, d.OwnerID)
		docIDs = append(docIDs, d.ID)
	}

	var owners []domain.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ownerIDs).Find(&owners).Error; err != nil {
		return err
	}
	ownerByID := make(map[string]domain.SafeUser, len(owners))
	for _, o := range owners {
		ownerByID[o.ID] = o.ToSafeUser()
	}

	var sharedWith []string
	if err := r.db.WithContext(ctx).Model(&domain.Share{}).
		Where("user_id = ? AND document_id IN ?", viewerID, docIDs).
		Pluck("document_id", &sharedWith).Error; err != nil {
		return err
	}
	shared := make(map[string]bool, len(sharedWith))
	for _, id := range sharedWith {
		shared[id] = true
	}

	for i := range docs {
		if owner, ok := ownerByID[docs[i].OwnerID]; ok {
			docs[i].Owner = &owner
		}
		docs[i].SharedWithMe = shared[docs[i].ID]
	}

	return nil
}

func (r *DocumentRepositoryImpl) Update(ctx context.Context, id string, updates map[string]any) (*domain.Document, error) {
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ? AND is_deleted = false", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return r.FindByID(ctx, id)
}

func (r *DocumentRepositoryImpl) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ? AND is_deleted = false", id).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Restore flips a trashed document back to active. The deleted state is only
// left through here or PermanentDelete.
func (r *DocumentRepositoryImpl) Restore(ctx context.Context, id string) (*domain.Document, error) {
	result := r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ? AND is_deleted = true", id).
		Updates(map[string]any{
			"is_deleted": false,
			"deleted_at": nil,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return r.FindByID(ctx, id)
}

func (r *DocumentRepositoryImpl) PermanentDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&domain.Share{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Document{}).Error
	})
}

// BulkSoftDelete trashes every listed document still owned by ownerID in one
// transaction, so a partial batch is never observable.
func (r *DocumentRepositoryImpl) BulkSoftDelete(ctx context.Context, ownerID string, ids []string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&domain.Document{}).
			Where("id IN ? AND owner_id = ? AND is_deleted = false", ids, ownerID).
			Updates(map[string]any{
				"is_deleted": true,
				"deleted_at": now,
				"updated_at": now,
			}).Error
	})
}

func (r *DocumentRepositoryImpl) SetFavorite(ctx context.Context, id string, favorite bool) error {
	result := r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_favorite": favorite,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DocumentRepositoryImpl) MarkVerified(ctx context.Context, id string, hash string) error {
	return r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"blockchain_verified": true,
			"blockchain_hash":     hash,
		}).Error
}

func (r *DocumentRepositoryImpl) ListShares(ctx context.Context, docID string) ([]domain.Share, error) {
	var shares []domain.Share
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("created_at ASC").
		Find(&shares).Error
	return shares, err
}

func (r *DocumentRepositoryImpl) FindShare(ctx context.Context, docID, userID string) (*domain.Share, error) {
	var share domain.Share
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", docID, userID).
		First(&share).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (r *DocumentRepositoryImpl) AddShare(ctx context.Context, share *domain.Share) error {
	share.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(share).Error
}

func (r *DocumentRepositoryImpl) RemoveShare(ctx context.Context, docID, userID string) error {
	return r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", docID, userID).
		Delete(&domain.Share{}).Error
}

// RecountShares reconciles shareCount with the shares table. Runs on the
// worker pool after share mutations.
func (r *DocumentRepositoryImpl) RecountShares(ctx context.Context, docID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Share{}).
			Where("document_id = ?", docID).
			Count(&count).Error; err != nil {
			return err
		}

		return tx.Model(&domain.Document{}).
			Where("id = ?", docID).
			UpdateColumn("share_count", count).Error
	})
}

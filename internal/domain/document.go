package domain

import (
	"time"
)

// Document is the central entity: an uploaded file plus its metadata.
type Document struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	MimeType    string `json:"mimeType"`

	OwnerID string    `gorm:"index" json:"ownerId"`
	Owner   *SafeUser `gorm:"-" json:"owner,omitempty"`

	Tags []string `gorm:"serializer:json" json:"tags"`

	BlockchainHash     string `json:"blockchainHash,omitempty"`
	BlockchainVerified bool   `json:"blockchainVerified"`
	IsEncrypted        bool   `json:"isEncrypted"`

	IsFavorite bool       `json:"isFavorite"`
	IsDeleted  bool       `gorm:"index" json:"isDeleted"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Version    int   `gorm:"default:1" json:"version"`
	ShareCount int64 `json:"shareCount"`

	// Per-viewer flag, filled in by the server from the shares table.
	SharedWithMe bool `gorm:"-" json:"sharedWithMe"`

	// Object storage key, server side only.
	StorageKey string `json:"-"`
}

// HasTag reports whether the document carries the given tag.
func (d *Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Share grants a user access to a document. shareCount on Document is the
// number of active Share rows for it, reconciled in the background.
type Share struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	DocumentID  string    `gorm:"uniqueIndex:idx_share_doc_user" json:"documentId"`
	UserID      string    `gorm:"uniqueIndex:idx_share_doc_user" json:"userId"`
	GrantedByID string    `json:"grantedById"`
	Role        string    `json:"role"` // viewer or editor
	CreatedAt   time.Time `json:"createdAt"`
}

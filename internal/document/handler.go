package document

import (
	"encoding/json"
	"net/http"

	"docchain/internal/errors"
	"docchain/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ShowDocuments(c *gin.Context) {
	userID, _ := c.Get("user_id")

	spec := utils.GetFilterParams(c)
	sort := utils.GetSortParams(c)

	docs, err := h.service.ListDocuments(c.Request.Context(), userID.(string), spec, sort)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, docs)
}

func (h *Handler) ShowSharedDocuments(c *gin.Context) {
	userID, _ := c.Get("user_id")

	spec := utils.GetFilterParams(c)
	shared := true
	spec.SharedWithMe = &shared

	docs, err := h.service.ListDocuments(c.Request.Context(), userID.(string), spec, utils.GetSortParams(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, docs)
}

// UploadMetadata is the JSON part of the multipart upload request.
type UploadMetadata struct {
	Title       string   `json:"title" binding:"required,min=1,max=255"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	IsEncrypted bool     `json:"isEncrypted"`
}

func (h *Handler) Upload(c *gin.Context) {
	userID, _ := c.Get("user_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(errors.BadRequest("File part is missing", err))
		return
	}

	var meta UploadMetadata
	if err := json.Unmarshal([]byte(c.PostForm("metadata")), &meta); err != nil {
		c.Error(errors.BadRequest("Metadata part is not valid JSON", err))
		return
	}
	// the metadata part bypasses ShouldBindJSON, so run the binding
	// validator explicitly
	if err := binding.Validator.ValidateStruct(&meta); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}
	defer file.Close()

	doc, err := h.service.UploadDocument(c.Request.Context(), userID.(string), &UploadRequest{
		Title:       meta.Title,
		Description: meta.Description,
		Tags:        meta.Tags,
		IsEncrypted: meta.IsEncrypted,
		FileName:    fileHeader.Filename,
		FileSize:    fileHeader.Size,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		Content:     file,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) Update(c *gin.Context) {
	docID := c.Param("id")
	userID, _ := c.Get("user_id")

	var patch UpdatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.UpdateDocument(c.Request.Context(), docID, userID.(string), &patch)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Delete(c *gin.Context) {
	docID := c.Param("id")
	userID, _ := c.Get("user_id")

	if err := h.service.DeleteDocument(c.Request.Context(), docID, userID.(string)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

func (h *Handler) BulkDelete(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	if err := h.service.BulkDeleteDocuments(c.Request.Context(), userID.(string), req.IDs); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Restore(c *gin.Context) {
	docID := c.Param("id")
	userID, _ := c.Get("user_id")

	doc, err := h.service.RestoreDocument(c.Request.Context(), docID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) PermanentDelete(c *gin.Context) {
	docID := c.Param("id")
	userID, _ := c.Get("user_id")

	if err := h.service.PermanentDeleteDocument(c.Request.Context(), docID, userID.(string)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Verify(c *gin.Context) {
	docID := c.Param("id")
	userID, _ := c.Get("user_id")

	result, err := h.service.VerifyDocument(c.Request.Context(), docID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Proof(c *gin.Context) {
	docID := c.Param("id")
	userID, _ := c.Get("user_id")

	result, err := h.service.GetProof(c.Request.Context(), docID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) AddFavorite(c *gin.Context) {
	h.setFavorite(c, true)
}

func (h *Handler) RemoveFavorite(c *gin.Context) {
	h.setFavorite(c, false)
}

func (h *Handler) setFavorite(c *gin.Context, favorite bool) {
	docID := c.Param("id")
	userID, _ := c.Get("user_id")

	if err := h.service.SetFavorite(c.Request.Context(), docID, userID.(string), favorite); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListShares(c *gin.Context) {
	docID := c.Param("id")
	userID, _ := c.Get("user_id")

	result, err := h.service.ListShares(c.Request.Context(), docID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type AddShareRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=editor viewer"`
}

func (h *Handler) AddShare(c *gin.Context) {
	docID := c.Param("id")
	requesterID, _ := c.Get("user_id")

	var req AddShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	result, err := h.service.AddShare(
		c.Request.Context(),
		docID,
		requesterID.(string),
		req.UserID,
		req.Role,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) RemoveShare(c *gin.Context) {
	docID := c.Param("id")
	targetUserID := c.Param("userId")
	requesterID, _ := c.Get("user_id")

	err := h.service.RemoveShare(
		c.Request.Context(),
		docID,
		requesterID.(string),
		targetUserID,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"civico/backend/internal/vault"
)

// UploadAttachment binds an uploaded blob (evidence or signature) to a draft.
// Multipart form: file plus an optional "kind" field.
func (h *Handler) UploadAttachment(c *gin.Context) {
	ident := caller(c)
	draftID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}

	att, err := h.Vault.Store(
		c.Request.Context(),
		draftID,
		ident.OwnerID,
		c.PostForm("kind"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		data,
	)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, vault.Descriptor{
		AttachmentID: att.ID,
		Kind:         att.Kind,
		Filename:     att.Filename,
		ContentType:  att.ContentType,
		SizeBytes:    att.SizeBytes,
		UploadedAt:   att.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// GetAttachment streams a blob back to its owner.
func (h *Handler) GetAttachment(c *gin.Context) {
	ident := caller(c)

	att, err := h.Vault.FetchForOwner(c.Request.Context(), c.Param("id"), ident.OwnerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+att.Filename+`"`)
	c.Data(http.StatusOK, att.ContentType, att.Data)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civico/backend/internal/models"
)

func draftView(d *models.Draft, secondsLeft int) gin.H {
	return gin.H{
		"id":                 d.ID,
		"fields":             d.Fields,
		"ready_to_submit":    d.ReadyToSubmit,
		"expires_in_seconds": secondsLeft,
	}
}

// CreateDraft opens a draft directly from the form flow.
func (h *Handler) CreateDraft(c *gin.Context) {
	ident := caller(c)

	var fields models.FieldMap
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := models.ValidateKeys(fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.Drafts.Create(c.Request.Context(), ident.OwnerID, fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draftView(d, d.SecondsLeft(h.Drafts.TTL, h.Drafts.Now())))
}

// UpdateDraft merges submitted fields into an owned draft.
func (h *Handler) UpdateDraft(c *gin.Context) {
	ident := caller(c)
	id := c.Param("id")

	var updates models.FieldMap
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := models.ValidateKeys(updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.Drafts.ApplyUpdates(c.Request.Context(), id, ident.OwnerID, updates)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draftView(d, d.SecondsLeft(h.Drafts.TTL, h.Drafts.Now())))
}

// DiscardDraft deletes a live draft and its attachments.
func (h *Handler) DiscardDraft(c *gin.Context) {
	ident := caller(c)

	if err := h.Drafts.Discard(c.Request.Context(), c.Param("id"), ident.OwnerID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"discarded": true})
}

// FinalizeDraft converts the draft into a complaint on explicit request.
func (h *Handler) FinalizeDraft(c *gin.Context) {
	ident := caller(c)

	complaint, err := h.Finalizer.Finalize(c.Request.Context(), c.Param("id"), ident.OwnerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"complaint_id": complaint.ID,
		"status":       complaint.Status,
	})
}

// ListDrafts returns the caller's live drafts. Listing is also the expiry
// trigger: expired drafts are finalized (or reported incomplete) here.
func (h *Handler) ListDrafts(c *gin.Context) {
	ident := caller(c)

	result, err := h.Drafts.ListMine(c.Request.Context(), ident.OwnerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListTypes returns the active complaint-type catalog.
func (h *Handler) ListTypes(c *gin.Context) {
	types, err := h.Catalog.ActiveTypes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(types))
	for _, t := range types {
		out = append(out, gin.H{"id": t.ID, "name": t.Name})
	}
	c.JSON(http.StatusOK, gin.H{"types": out})
}

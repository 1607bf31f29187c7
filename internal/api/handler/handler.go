// Package handler exposes the intake engine over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"civico/backend/internal/assistant"
	"civico/backend/internal/catalog"
	"civico/backend/internal/draft"
	"civico/backend/internal/identity"
	"civico/backend/internal/storage"
	"civico/backend/internal/vault"
)

// Handler carries the services the routes need.
type Handler struct {
	Orchestrator *assistant.Orchestrator
	Drafts       *draft.Store
	Finalizer    *draft.Finalizer
	Vault        *vault.Vault
	Catalog      *catalog.Service
}

// NewHandler wires the HTTP layer.
func NewHandler(orc *assistant.Orchestrator, drafts *draft.Store, fin *draft.Finalizer, v *vault.Vault, cat *catalog.Service) *Handler {
	return &Handler{
		Orchestrator: orc,
		Drafts:       drafts,
		Finalizer:    fin,
		Vault:        v,
		Catalog:      cat,
	}
}

// caller extracts the authenticated identity; the middleware guarantees it
// is present on every protected route.
func caller(c *gin.Context) *identity.Identity {
	ident, _ := identity.FromContext(c)
	return ident
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *draft.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "draft incomplete",
			"missing": verr.Missing,
			"fields":  verr.Fields,
		})
	case errors.Is(err, draft.ErrExpired):
		c.JSON(http.StatusConflict, gin.H{"error": "draft expired"})
	case errors.Is(err, draft.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, vault.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, vault.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, vault.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

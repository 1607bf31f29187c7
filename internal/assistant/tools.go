package assistant

import (
	"context"
	"errors"
	"log"

	"civico/backend/internal/catalog"
	"civico/backend/internal/draft"
	"civico/backend/internal/models"
)

// Tool names exposed to the model.
const (
	ToolListTypes     = "list_types"
	ToolGetDraft      = "get_draft"
	ToolUpdateDraft   = "update_draft"
	ToolFinalizeDraft = "finalize_draft"
)

// Router executes the model's tool calls against the real services. Every
// result is a plain map so the model sees errors as data, never as silence.
type Router struct {
	Catalog   *catalog.Service
	Drafts    *draft.Store
	Finalizer *draft.Finalizer
}

// Execute runs one tool call on behalf of ownerID. Tool errors come back as
// {"error": ...} results; only infrastructure failures return a Go error.
func (r *Router) Execute(ctx context.Context, ownerID string, call ToolCall) map[string]any {
	switch call.Name {
	case ToolListTypes:
		return r.listTypes(ctx)
	case ToolGetDraft:
		return r.getDraft(ctx, ownerID, call.Args)
	case ToolUpdateDraft:
		return r.updateDraft(ctx, ownerID, call.Args)
	case ToolFinalizeDraft:
		return r.finalizeDraft(ctx, ownerID, call.Args)
	}
	return map[string]any{"error": "unknown_tool"}
}

func (r *Router) listTypes(ctx context.Context) map[string]any {
	types, err := r.Catalog.ActiveTypes(ctx)
	if err != nil {
		log.Printf("ERROR: list_types tool failed: %v", err)
		return map[string]any{"error": "catalog_unavailable"}
	}
	items := make([]map[string]any, 0, len(types))
	for _, t := range types {
		items = append(items, map[string]any{"id": t.ID, "name": t.Name})
	}
	return map[string]any{"types": items}
}

func (r *Router) getDraft(ctx context.Context, ownerID string, args map[string]any) map[string]any {
	id, _ := args["draft_id"].(string)
	d, err := r.Drafts.Get(ctx, id, ownerID)
	if errors.Is(err, draft.ErrNotFound) {
		return map[string]any{"error": "draft_not_found"}
	}
	if err != nil {
		log.Printf("ERROR: get_draft tool failed: %v", err)
		return map[string]any{"error": "storage_unavailable"}
	}
	return map[string]any{
		"draft_id":           d.ID,
		"fields":             map[string]any(d.Fields),
		"ready_to_submit":    d.ReadyToSubmit,
		"expires_in_seconds": d.SecondsLeft(r.Drafts.TTL, r.Drafts.Now()),
	}
}

func (r *Router) updateDraft(ctx context.Context, ownerID string, args map[string]any) map[string]any {
	id, _ := args["draft_id"].(string)

	updates := models.FieldMap{}
	if v, ok := args["type_id"].(float64); ok && v > 0 {
		updates[models.FieldTypeID] = v
	}
	for argKey, fieldKey := range map[string]string{
		"description": models.FieldDescription,
		"reference":   models.FieldReference,
	} {
		if v, ok := args[argKey].(string); ok && v != "" {
			updates[fieldKey] = v
		}
	}
	if lat, ok := args["latitude"].(float64); ok {
		if lng, ok := args["longitude"].(float64); ok {
			updates[models.FieldLatitude] = lat
			updates[models.FieldLongitude] = lng
		}
	}

	// A model-sent address is what the citizen dictated, so it belongs in
	// reference (and only if none was given). The resolved address is always
	// generated from the coordinates.
	if addr, ok := args["address"].(string); ok && addr != "" && updates.String(models.FieldReference) == "" {
		if cur, err := r.Drafts.Get(ctx, id, ownerID); err == nil && cur.Fields.String(models.FieldReference) == "" {
			updates[models.FieldReference] = addr
		}
	}

	d, err := r.Drafts.ApplyUpdates(ctx, id, ownerID, updates)
	switch {
	case errors.Is(err, draft.ErrNotFound):
		return map[string]any{"error": "draft_not_found"}
	case errors.Is(err, draft.ErrExpired):
		return map[string]any{"error": "draft_expired"}
	case err != nil:
		log.Printf("ERROR: update_draft tool failed: %v", err)
		return map[string]any{"error": "storage_unavailable"}
	}
	return map[string]any{
		"updated":         true,
		"ready_to_submit": d.ReadyToSubmit,
		"fields":          map[string]any(d.Fields),
	}
}

func (r *Router) finalizeDraft(ctx context.Context, ownerID string, args map[string]any) map[string]any {
	id, _ := args["draft_id"].(string)
	confirmed, _ := args["confirmation"].(bool)
	if !confirmed {
		return map[string]any{"error": "not_confirmed"}
	}

	c, err := r.Finalizer.Finalize(ctx, id, ownerID)
	if err != nil {
		var verr *draft.ValidationError
		switch {
		case errors.As(err, &verr):
			return map[string]any{
				"error":   "draft_incomplete",
				"missing": verr.Missing,
				"fields":  map[string]any(verr.Fields),
			}
		case errors.Is(err, draft.ErrNotFound):
			return map[string]any{"error": "draft_not_found"}
		default:
			log.Printf("ERROR: finalize_draft tool failed: %v", err)
			return map[string]any{"error": "storage_unavailable"}
		}
	}
	return map[string]any{"ok": true, "complaint_id": c.ID}
}

package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"civico/backend/internal/catalog"
	"civico/backend/internal/config"
	"civico/backend/internal/draft"
	"civico/backend/internal/extract"
	"civico/backend/internal/models"
	"civico/backend/internal/replies"
	"civico/backend/internal/storage"
)

// DraftView is the draft snapshot echoed back on every chat turn.
type DraftView struct {
	ID            string          `json:"id"`
	ReadyToSubmit bool            `json:"ready_to_submit"`
	Fields        models.FieldMap `json:"fields"`
	SecondsLeft   int             `json:"expires_in_seconds"`
}

// Response is one completed chat turn.
type Response struct {
	Reply          string     `json:"reply"`
	ConversationID string     `json:"conversation_id"`
	ComplaintID    string     `json:"complaint_id,omitempty"`
	Draft          *DraftView `json:"draft,omitempty"`
}

// Orchestrator runs the per-message control loop. Deterministic handling
// (extraction, confirmation, cancellation) comes first; the model is only
// consulted when no short-circuit applies.
type Orchestrator struct {
	Store     storage.Storage
	Drafts    *draft.Store
	Finalizer *draft.Finalizer
	Catalog   *catalog.Service
	Model     ModelClient
	Replies   *replies.Catalog
	Router    *Router
}

// NewOrchestrator wires the orchestrator and its tool router.
func NewOrchestrator(st storage.Storage, drafts *draft.Store, fin *draft.Finalizer, cat *catalog.Service, model ModelClient, rep *replies.Catalog) *Orchestrator {
	return &Orchestrator{
		Store:     st,
		Drafts:    drafts,
		Finalizer: fin,
		Catalog:   cat,
		Model:     model,
		Replies:   rep,
		Router:    &Router{Catalog: cat, Drafts: drafts, Finalizer: fin},
	}
}

// StartConversation opens a conversation and persists the greeting. No draft
// is created: leaving without writing anything must leave no draft behind.
func (o *Orchestrator) StartConversation(ctx context.Context, ownerID string) (*models.Conversation, *models.Message, error) {
	conv, err := o.Store.CreateConversation(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	greeting, err := o.Store.AppendMessage(ctx, conv.ID, models.SenderAssistant, o.Replies.Get(replies.KeyGreeting))
	if err != nil {
		return nil, nil, err
	}
	return conv, greeting, nil
}

// HandleMessage processes one citizen message end to end and returns the
// assistant's reply. clientFields carries structured fields the app already
// captured (location button, type picker); they merge like extracted ones.
func (o *Orchestrator) HandleMessage(ctx context.Context, ownerID, conversationID, text string, clientFields models.FieldMap) (*Response, error) {
	conv, err := o.Store.GetConversation(ctx, conversationID, ownerID)
	if err != nil {
		return nil, err
	}

	if _, err := o.Store.AppendMessage(ctx, conv.ID, models.SenderCitizen, text); err != nil {
		return nil, err
	}

	extracted := extract.Extract(text)
	useful := extract.HasUsefulFields(extracted) || len(clientFields) > 0
	confirmed := extract.IsConfirmation(text)

	d, err := o.Drafts.FindByConversation(ctx, ownerID, conv.ID)
	if err != nil && !errors.Is(err, draft.ErrNotFound) {
		return nil, err
	}

	// A draft appears only once the citizen gives something to hold, or
	// explicitly tries to send. Greetings and small talk create nothing.
	if d == nil && (useful || confirmed) {
		d, err = o.Drafts.CreateIfAbsent(ctx, ownerID, conv.ID)
		if err != nil {
			return nil, err
		}
	}

	if d != nil && (len(extracted) > 0 || len(clientFields) > 0) {
		d, err = o.mergeExtracted(ctx, d, extracted, clientFields)
		if err != nil {
			if resp, ok := o.expiredMidChat(ctx, conv.ID, d, err); ok {
				return resp, nil
			}
			return nil, err
		}
	}

	if confirmed && d != nil && d.ReadyToSubmit {
		return o.finalizeOnConfirmation(ctx, conv.ID, d)
	}

	if confirmed {
		missing := []string{models.FieldTypeID, models.FieldDescription, models.FieldLatitude, models.FieldLongitude}
		if d != nil {
			missing = d.Fields.MissingFields()
		}
		reply := o.Replies.Getf(replies.KeyConfirmPending, strings.Join(missing, ", "))
		return o.respond(ctx, conv.ID, reply, "", d)
	}

	if extract.IsCancellation(text) {
		return o.respond(ctx, conv.ID, o.Replies.Get(replies.KeyCancelAck), "", d)
	}

	return o.modelTurn(ctx, conv.ID, ownerID, d)
}

// mergeExtracted folds deterministic extraction and client-captured fields
// into the draft. The type hint goes through the resolver; an unresolvable
// hint is dropped, not guessed.
func (o *Orchestrator) mergeExtracted(ctx context.Context, d *models.Draft, extracted map[string]any, clientFields models.FieldMap) (*models.Draft, error) {
	updates := models.FieldMap{}

	if hint, ok := extracted[extract.KeyTypeHint].(string); ok {
		typeID, found, err := o.Catalog.ResolveHint(ctx, hint)
		if err != nil {
			return nil, err
		}
		if found {
			updates[models.FieldTypeID] = float64(typeID)
		}
	}
	for src, dst := range map[string]string{
		extract.KeyDescription: models.FieldDescription,
		extract.KeyReference:   models.FieldReference,
		extract.KeyLatitude:    models.FieldLatitude,
		extract.KeyLongitude:   models.FieldLongitude,
	} {
		if v, ok := extracted[src]; ok {
			updates[dst] = v
		}
	}
	for k, v := range clientFields {
		if v != nil {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		return d, nil
	}

	return o.Drafts.ApplyUpdates(ctx, d.ID, d.OwnerID, updates)
}

// expiredMidChat handles a draft that hit its TTL while the citizen was
// typing: the touch is the expiry trigger, so the draft finalizes (or
// surfaces as incomplete) right here.
func (o *Orchestrator) expiredMidChat(ctx context.Context, conversationID string, d *models.Draft, cause error) (*Response, bool) {
	if !errors.Is(cause, draft.ErrExpired) {
		return nil, false
	}

	c, err := o.Finalizer.Finalize(ctx, d.ID, d.OwnerID)
	if err == nil {
		reply := o.Replies.Getf(replies.KeyFinalized, c.ID)
		resp, rerr := o.respond(ctx, conversationID, reply, c.ID, nil)
		if rerr != nil {
			return nil, false
		}
		return resp, true
	}

	var verr *draft.ValidationError
	if errors.As(err, &verr) {
		reply := o.Replies.Getf(replies.KeyFinalizeIncomplete, strings.Join(verr.Missing, ", "))
		resp, rerr := o.respond(ctx, conversationID, reply, "", nil)
		if rerr != nil {
			return nil, false
		}
		return resp, true
	}
	return nil, false
}

func (o *Orchestrator) finalizeOnConfirmation(ctx context.Context, conversationID string, d *models.Draft) (*Response, error) {
	c, err := o.Finalizer.Finalize(ctx, d.ID, d.OwnerID)
	if err == nil {
		reply := o.Replies.Getf(replies.KeyFinalized, c.ID)
		return o.respond(ctx, conversationID, reply, c.ID, nil)
	}

	var verr *draft.ValidationError
	if errors.As(err, &verr) {
		reply := o.Replies.Getf(replies.KeyFinalizeIncomplete, strings.Join(verr.Missing, ", "))
		return o.respond(ctx, conversationID, reply, "", d)
	}
	if errors.Is(err, draft.ErrNotFound) {
		// Lost a race with another finalize trigger; the complaint exists
		// but we no longer know its id from here.
		return o.respond(ctx, conversationID, o.Replies.Get(replies.KeyDraftGone), "", nil)
	}
	return nil, err
}

// modelTurn runs the bounded tool loop. The model gets the last messages
// plus an internal marker naming the draft (or its absence); mutation tools
// are rejected outright while no draft exists, whatever the model asks for.
func (o *Orchestrator) modelTurn(ctx context.Context, conversationID, ownerID string, d *models.Draft) (*Response, error) {
	msgs, err := o.Store.RecentMessages(ctx, conversationID, config.HistoryWindow)
	if err != nil {
		return nil, err
	}

	history := make([]Turn, 0, len(msgs)+1)
	for _, m := range msgs {
		role := "user"
		if m.Sender == models.SenderAssistant {
			role = "model"
		}
		history = append(history, Turn{Role: role, Text: m.Body})
	}
	marker := "(contexto interno: draft_id=None)"
	if d != nil {
		marker = fmt.Sprintf("(contexto interno: draft_id=%s)", d.ID)
	}
	history = append(history, Turn{Role: "user", Text: marker})

	var replyText, complaintID string
	for round := 0; round < config.MaxToolRounds; round++ {
		reply, err := o.Model.Generate(ctx, history)
		if err != nil {
			log.Printf("ERROR: Model round failed for conversation %s: %v", conversationID, err)
			replyText = o.Replies.Get(replies.KeyModelUnavailable)
			break
		}
		replyText = strings.TrimSpace(reply.Text)
		if len(reply.Calls) == 0 {
			break
		}
		// Round budget spent: whatever text the last response carried stands
		// and its leftover tool calls are not executed.
		if round == config.MaxToolRounds-1 {
			break
		}

		results := make([]ToolResult, 0, len(reply.Calls))
		for _, call := range reply.Calls {
			var result map[string]any
			if d == nil && (call.Name == ToolUpdateDraft || call.Name == ToolFinalizeDraft) {
				result = map[string]any{"error": "no_draft"}
			} else {
				result = o.Router.Execute(ctx, ownerID, call)
			}
			if call.Name == ToolFinalizeDraft {
				if id, ok := result["complaint_id"].(string); ok {
					complaintID = id
					d = nil
				}
			}
			results = append(results, ToolResult{Name: call.Name, Result: result})
		}

		history = append(history,
			Turn{Role: "model", Text: reply.Text, Calls: reply.Calls},
			Turn{Role: "user", Results: results},
		)
	}
	if replyText == "" {
		replyText = o.Replies.Get(replies.KeyAskType)
	}

	// Tools may have changed the draft; re-read before nudging.
	if d != nil {
		if fresh, err := o.Drafts.Get(ctx, d.ID, ownerID); err == nil {
			d = fresh
		} else if errors.Is(err, draft.ErrNotFound) {
			d = nil
		}
	}
	replyText = o.appendNudges(replyText, d)

	return o.respond(ctx, conversationID, replyText, complaintID, d)
}

// appendNudges adds the deterministic location and evidence reminders when
// the model's reply did not already cover them.
func (o *Orchestrator) appendNudges(reply string, d *models.Draft) string {
	lower := strings.ToLower(reply)
	if d != nil {
		_, okLat := d.Fields.Float(models.FieldLatitude)
		_, okLng := d.Fields.Float(models.FieldLongitude)
		if (!okLat || !okLng) && !strings.Contains(lower, "ubic") {
			reply += "\n\n" + o.Replies.Get(replies.KeyNudgeLocation)
		}
		if !strings.Contains(lower, "evidencia") && !strings.Contains(lower, "foto") {
			reply += "\n\n" + o.Replies.Get(replies.KeyNudgeEvidence)
		}
		return reply
	}
	if !strings.Contains(lower, "ubic") {
		reply += "\n\n" + o.Replies.Get(replies.KeyAskLocation)
	}
	return reply
}

// respond persists the assistant reply and assembles the turn response.
func (o *Orchestrator) respond(ctx context.Context, conversationID, reply, complaintID string, d *models.Draft) (*Response, error) {
	if _, err := o.Store.AppendMessage(ctx, conversationID, models.SenderAssistant, reply); err != nil {
		return nil, err
	}

	resp := &Response{
		Reply:          reply,
		ConversationID: conversationID,
		ComplaintID:    complaintID,
	}
	if d != nil {
		resp.Draft = &DraftView{
			ID:            d.ID,
			ReadyToSubmit: d.ReadyToSubmit,
			Fields:        d.Fields,
			SecondsLeft:   d.SecondsLeft(o.Drafts.TTL, o.Drafts.Now()),
		}
	}
	return resp, nil
}

// Package draft owns the draft lifecycle: creation, merging of extracted or
// submitted fields, TTL handling, and the single authoritative finalization
// transition from draft to complaint.
package draft

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"civico/backend/internal/config"
	"civico/backend/internal/geo"
	"civico/backend/internal/models"
)

// Store provides CRUD and TTL semantics over drafts. Every mutating
// operation runs inside a transaction that first takes a row-level lock on
// the draft.
type Store struct {
	DB        *gorm.DB
	Geocoder  geo.Geocoder
	Finalizer *Finalizer
	TTL       time.Duration

	// Now is the clock; overridable in tests to drive TTL expiry.
	Now func() time.Time
}

// NewStore wires a draft store with the standard TTL.
func NewStore(db *gorm.DB, geocoder geo.Geocoder, fin *Finalizer) *Store {
	return &Store{
		DB:        db,
		Geocoder:  geocoder,
		Finalizer: fin,
		TTL:       config.DraftTTL,
		Now:       time.Now,
	}
}

// lockForUpdate applies SELECT ... FOR UPDATE where the dialect supports it.
// SQLite (tests) serializes writes on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return tx
}

// isDuplicate recognizes a unique-index violation across drivers.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

// FindByConversation looks up the draft bound to a conversation without
// creating one.
func (s *Store) FindByConversation(ctx context.Context, ownerID, conversationID string) (*models.Draft, error) {
	var d models.Draft
	err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND conversation_id = ?", ownerID, conversationID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateIfAbsent returns the existing draft for (owner, conversation) or
// creates an empty one tagged with the chat origin. The composite unique
// index backstops the lookup against concurrent creates: the loser of the
// race re-reads the winner's row.
func (s *Store) CreateIfAbsent(ctx context.Context, ownerID, conversationID string) (*models.Draft, error) {
	var existing models.Draft
	err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND conversation_id = ?", ownerID, conversationID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	d := &models.Draft{
		OwnerID:        ownerID,
		ConversationID: &conversationID,
		Fields:         models.FieldMap{models.FieldOrigin: models.OriginChat},
		CreatedAt:      s.Now(),
		UpdatedAt:      s.Now(),
	}
	err = s.DB.WithContext(ctx).Create(d).Error
	if err != nil && isDuplicate(err) {
		// Lost the create race; the unique index guarantees the winner's
		// draft is the one to use.
		err = s.DB.WithContext(ctx).
			Where("owner_id = ? AND conversation_id = ?", ownerID, conversationID).
			First(&existing).Error
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to create draft for conversation %s: %v", conversationID, err)
		return nil, err
	}
	return d, nil
}

// Create opens a draft directly from the form path, skipping extraction.
// Provided fields are validated against the closed key set, enriched with a
// resolved address when coordinates allow, and the ready flag is computed
// before the row is written.
func (s *Store) Create(ctx context.Context, ownerID string, fields models.FieldMap) (*models.Draft, error) {
	if fields == nil {
		fields = models.FieldMap{}
	}
	if err := models.ValidateKeys(fields); err != nil {
		return nil, err
	}
	merged := fields.Clone()
	if merged.String(models.FieldOrigin) == "" {
		merged[models.FieldOrigin] = models.OriginForm
	}
	s.enrichAddress(ctx, merged)

	d := &models.Draft{
		OwnerID:       ownerID,
		Fields:        merged,
		ReadyToSubmit: merged.Complete(),
		CreatedAt:     s.Now(),
		UpdatedAt:     s.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(d).Error; err != nil {
		log.Printf("ERROR: Failed to create form draft for owner %s: %v", ownerID, err)
		return nil, err
	}
	return d, nil
}

// Get fetches a draft scoped to its owner. A draft owned by someone else is
// a NotFound, not a permission error.
func (s *Store) Get(ctx context.Context, draftID, ownerID string) (*models.Draft, error) {
	var d models.Draft
	err := s.DB.WithContext(ctx).
		Where("id = ? AND owner_id = ?", draftID, ownerID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ApplyUpdates merges the provided keys into the draft's field map (keys are
// never removed), triggers address enrichment when both coordinates are
// present, recomputes ready_to_submit, and bumps updated_at. The TTL anchor
// is untouched: editing never extends a draft's life.
func (s *Store) ApplyUpdates(ctx context.Context, draftID, ownerID string, updates models.FieldMap) (*models.Draft, error) {
	if err := models.ValidateKeys(updates); err != nil {
		return nil, err
	}

	// The geocoder is external I/O with a 6s budget; resolve the address
	// before taking the row lock so the lock is held only for the merge.
	pending, err := s.Get(ctx, draftID, ownerID)
	if err != nil {
		return nil, err
	}
	preview := pending.Fields.Clone()
	for k, v := range updates {
		if v != nil {
			preview[k] = v
		}
	}
	s.enrichAddress(ctx, preview)
	if addr := preview.String(models.FieldResolvedAddress); addr != "" && updates[models.FieldResolvedAddress] == nil {
		updates = updates.Clone()
		updates[models.FieldResolvedAddress] = addr
	}

	var out models.Draft
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Draft
		err := lockForUpdate(tx).
			Where("id = ? AND owner_id = ?", draftID, ownerID).
			First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if d.Expired(s.TTL, s.Now()) {
			return ErrExpired
		}

		merged := d.Fields.Clone()
		for k, v := range updates {
			if v != nil {
				merged[k] = v
			}
		}

		d.Fields = merged
		d.ReadyToSubmit = merged.Complete()
		d.UpdatedAt = s.Now()
		if err := tx.Save(&d).Error; err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Discard deletes the draft and every attachment it still owns. An expired
// draft cannot be discarded: it must go through finalization.
func (s *Store) Discard(ctx context.Context, draftID, ownerID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Draft
		err := lockForUpdate(tx).
			Where("id = ? AND owner_id = ?", draftID, ownerID).
			First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if d.Expired(s.TTL, s.Now()) {
			return ErrExpired
		}
		if err := tx.Where("draft_id = ?", d.ID).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&d).Error
	})
}

// ListEntry is one owned draft with its TTL metadata.
type ListEntry struct {
	Draft       models.Draft `json:"draft"`
	SecondsLeft int          `json:"expires_in_seconds"`
}

// ExpiredEntry is a draft past its TTL that could not be auto-finalized.
type ExpiredEntry struct {
	DraftID string   `json:"draft_id"`
	Missing []string `json:"missing"`
}

// SweepResult is the outcome of ListMine: live drafts plus the lazy sweep's
// tally of auto-finalized and unconvertible expired drafts.
type SweepResult struct {
	AutoFinalized     int            `json:"auto_finalized"`
	Drafts            []ListEntry    `json:"drafts"`
	ExpiredIncomplete []ExpiredEntry `json:"expired_incomplete"`
}

// ListMine returns the caller's drafts. Before returning it sweeps every
// expired draft through the finalizer — the system's only expiry trigger;
// there is no background timer. Expired drafts that fail validation are
// surfaced, not retried or dropped.
func (s *Store) ListMine(ctx context.Context, ownerID string) (*SweepResult, error) {
	var drafts []models.Draft
	err := s.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&drafts).Error
	if err != nil {
		return nil, err
	}

	out := &SweepResult{Drafts: []ListEntry{}, ExpiredIncomplete: []ExpiredEntry{}}
	now := s.Now()
	for _, d := range drafts {
		if !d.Expired(s.TTL, now) {
			out.Drafts = append(out.Drafts, ListEntry{Draft: d, SecondsLeft: d.SecondsLeft(s.TTL, now)})
			continue
		}

		_, err := s.Finalizer.Finalize(ctx, d.ID, ownerID)
		switch {
		case err == nil:
			out.AutoFinalized++
		case errors.Is(err, ErrNotFound):
			// Lost a race with a concurrent finalize; the complaint exists.
		default:
			var verr *ValidationError
			if errors.As(err, &verr) {
				out.ExpiredIncomplete = append(out.ExpiredIncomplete, ExpiredEntry{DraftID: d.ID, Missing: verr.Missing})
				continue
			}
			log.Printf("ERROR: Auto-finalize of draft %s failed: %v", d.ID, err)
			return nil, err
		}
	}
	return out, nil
}

// enrichAddress resolves the address from coordinates when both are present
// and no resolved address is cached yet. Best-effort: a geocoder miss leaves
// the field unset.
func (s *Store) enrichAddress(ctx context.Context, fields models.FieldMap) {
	if s.Geocoder == nil {
		return
	}
	if fields.String(models.FieldResolvedAddress) != "" {
		return
	}
	lat, okLat := fields.Float(models.FieldLatitude)
	lng, okLng := fields.Float(models.FieldLongitude)
	if !okLat || !okLng {
		return
	}
	if addr, ok := s.Geocoder.ReverseGeocode(ctx, lat, lng); ok {
		fields[models.FieldResolvedAddress] = addr
	}
}

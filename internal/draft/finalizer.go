package draft

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"civico/backend/internal/models"
	"civico/backend/internal/vault"
)

// EventPublisher announces finalized complaints to the notification
// periphery. Publishing happens after commit and is best-effort.
type EventPublisher interface {
	PublishComplaintFinalized(ctx context.Context, complaintID, ownerID string) error
}

// Finalizer performs the single authoritative draft-to-complaint transition.
// Every path that produces a complaint from a draft — manual submit, the TTL
// sweep, the assistant's finalize tool — goes through Finalize.
type Finalizer struct {
	DB     *gorm.DB
	Events EventPublisher
}

// NewFinalizer constructs a finalizer. events may be nil.
func NewFinalizer(db *gorm.DB, events EventPublisher) *Finalizer {
	return &Finalizer{DB: db, Events: events}
}

// Finalize validates the draft and atomically creates the complaint, rehomes
// its attachments, links the conversation, and deletes the draft. The draft
// row is locked for the whole sequence, so concurrent attempts cannot both
// succeed: the loser observes ErrNotFound (already finalized) or blocks
// until the winner commits and then observes the same.
//
// On ValidationError the draft is left untouched so the citizen can keep
// editing or retry.
func (f *Finalizer) Finalize(ctx context.Context, draftID, ownerID string) (*models.Complaint, error) {
	var complaint *models.Complaint

	err := f.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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

		if missing := d.Fields.MissingFields(); len(missing) > 0 {
			return &ValidationError{Missing: missing, Fields: d.Fields.Clone()}
		}

		typeID, _ := d.Fields.TypeID()
		lat, _ := d.Fields.Float(models.FieldLatitude)
		lng, _ := d.Fields.Float(models.FieldLongitude)
		origin := d.Fields.String(models.FieldOrigin)
		if origin == "" {
			origin = models.OriginForm
		}

		c := &models.Complaint{
			OwnerID:         d.OwnerID,
			TypeID:          typeID,
			Description:     d.Fields.String(models.FieldDescription),
			Reference:       d.Fields.String(models.FieldReference),
			Latitude:        lat,
			Longitude:       lng,
			ResolvedAddress: d.Fields.String(models.FieldResolvedAddress),
			Origin:          origin,
			Status:          models.StatusPending,
		}
		if err := tx.Create(c).Error; err != nil {
			return err
		}

		if err := f.rehomeSignature(tx, &d, c); err != nil {
			return err
		}
		if err := f.rehomeEvidences(tx, &d, c); err != nil {
			return err
		}

		// One-time conversation link; never overwritten.
		if d.ConversationID != nil {
			err := tx.Model(&models.Conversation{}).
				Where("id = ? AND complaint_id IS NULL", *d.ConversationID).
				Update("complaint_id", c.ID).Error
			if err != nil {
				return err
			}
		}

		// Anything the draft still owns is an orphan now; the rehomed blobs
		// no longer carry the draft id and survive this delete.
		if err := tx.Where("draft_id = ?", d.ID).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&d).Error; err != nil {
			return err
		}

		complaint = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if f.Events != nil {
		_ = f.Events.PublishComplaintFinalized(ctx, complaint.ID, complaint.OwnerID)
	}
	return complaint, nil
}

func (f *Finalizer) rehomeSignature(tx *gorm.DB, d *models.Draft, c *models.Complaint) error {
	sigID := d.Fields.String(models.FieldSignatureID)
	if sigID == "" {
		return nil
	}
	att, err := vault.Rehome(tx, sigID, d.ID, c.ID)
	if errors.Is(err, vault.ErrNotFound) {
		// Stale descriptor; the signature never blocks finalization.
		log.Printf("ERROR: Signature attachment %s missing for draft %s", sigID, d.ID)
		return nil
	}
	if err != nil {
		return err
	}
	return tx.Create(&models.Signature{
		ComplaintID:  c.ID,
		AttachmentID: att.ID,
	}).Error
}

func (f *Finalizer) rehomeEvidences(tx *gorm.DB, d *models.Draft, c *models.Complaint) error {
	evs, _ := d.Fields[models.FieldEvidences].([]any)
	for _, raw := range evs {
		desc, _ := raw.(map[string]any)
		if desc == nil {
			continue
		}
		attID, _ := desc["attachment_id"].(string)
		if attID == "" {
			continue
		}

		att, err := vault.Rehome(tx, attID, d.ID, c.ID)
		if errors.Is(err, vault.ErrNotFound) {
			log.Printf("ERROR: Evidence attachment %s missing for draft %s", attID, d.ID)
			continue
		}
		if err != nil {
			return err
		}

		kind, _ := desc["kind"].(string)
		if kind == "" {
			kind = att.Kind
		}
		err = tx.Create(&models.Evidence{
			ComplaintID:  c.ID,
			AttachmentID: att.ID,
			Kind:         kind,
			Filename:     att.Filename,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

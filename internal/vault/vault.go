// Package vault binds uploaded binary evidence and signatures to drafts and
// moves their ownership to the finalized complaint. A blob always has exactly
// one owner: a draft or a complaint, never both.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"civico/backend/internal/config"
	"civico/backend/internal/models"
)

// ErrNotFound covers absent drafts/attachments and draft-upload attempts
// against someone else's draft.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when a citizen fetches a blob they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrTooLarge marks an upload over its per-kind size limit.
var ErrTooLarge = errors.New("attachment too large")

// Descriptor is the field-map entry recorded on the draft for each uploaded
// evidence blob.
type Descriptor struct {
	AttachmentID string `json:"attachment_id"`
	Kind         string `json:"kind"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	SizeBytes    int64  `json:"size_bytes"`
	UploadedAt   string `json:"uploaded_at"`
}

// Vault stores attachment blobs in the relational store.
type Vault struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewVault constructs the vault.
func NewVault(db *gorm.DB) *Vault {
	return &Vault{DB: db, Now: time.Now}
}

// InferKind picks the attachment kind from the declared tag when valid, else
// from the content type. Anything unrecognized is treated as an image, which
// carries the strictest limit.
func InferKind(declared, contentType string) string {
	k := strings.ToLower(strings.TrimSpace(declared))
	switch k {
	case models.KindImage, models.KindAudio, models.KindVideo, models.KindIDDoc, models.KindSignature:
		return k
	case "foto", "photo":
		return models.KindImage
	case "firma":
		return models.KindSignature
	case "cedula":
		return models.KindIDDoc
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "video/"):
		return models.KindVideo
	case strings.HasPrefix(ct, "audio/"):
		return models.KindAudio
	case ct == "application/pdf":
		return models.KindIDDoc
	}
	return models.KindImage
}

// Store validates, persists and binds an uploaded blob to the draft. The
// draft's field map gains either a descriptor in its evidences list or the
// signature attachment id; the draft row is updated under its row lock.
func (v *Vault) Store(ctx context.Context, draftID, ownerID, declaredKind, filename, contentType string, data []byte) (*models.Attachment, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	kind := InferKind(declaredKind, contentType)

	limit := config.AttachmentLimits[kind]
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: max %dMB for %s", ErrTooLarge, limit/1024/1024, kind)
	}

	var att *models.Attachment
	err := v.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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

		att = &models.Attachment{
			DraftID:     &d.ID,
			Kind:        kind,
			Filename:    filename,
			ContentType: contentType,
			SizeBytes:   int64(len(data)),
			Data:        data,
		}
		if err := tx.Create(att).Error; err != nil {
			return err
		}

		fields := d.Fields.Clone()
		if kind == models.KindSignature {
			fields[models.FieldSignatureID] = att.ID
		} else {
			evs, _ := fields[models.FieldEvidences].([]any)
			evs = append(evs, map[string]any{
				"attachment_id": att.ID,
				"kind":          kind,
				"filename":      filename,
				"content_type":  contentType,
				"size_bytes":    att.SizeBytes,
				"uploaded_at":   v.Now().UTC().Format(time.RFC3339),
			})
			fields[models.FieldEvidences] = evs
		}
		d.Fields = fields
		d.UpdatedAt = v.Now()
		return tx.Save(&d).Error
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// Rehome flips an attachment's ownership from a draft to a complaint. Used
// only by the finalizer, inside the finalize transaction.
func Rehome(tx *gorm.DB, attachmentID, draftID, complaintID string) (*models.Attachment, error) {
	var att models.Attachment
	err := tx.Where("id = ? AND draft_id = ?", attachmentID, draftID).First(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	att.DraftID = nil
	att.ComplaintID = &complaintID
	if err := tx.Model(&models.Attachment{}).
		Where("id = ?", att.ID).
		Updates(map[string]any{"draft_id": nil, "complaint_id": complaintID}).Error; err != nil {
		return nil, err
	}
	return &att, nil
}

// FetchForOwner returns the blob with its metadata, enforcing that only the
// owning citizen of the draft or complaint may read it.
func (v *Vault) FetchForOwner(ctx context.Context, attachmentID, ownerID string) (*models.Attachment, error) {
	var att models.Attachment
	err := v.DB.WithContext(ctx).Where("id = ?", attachmentID).First(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	switch {
	case att.DraftID != nil:
		var d models.Draft
		if err := v.DB.WithContext(ctx).Select("owner_id").Where("id = ?", *att.DraftID).First(&d).Error; err != nil {
			return nil, err
		}
		if d.OwnerID != ownerID {
			return nil, ErrForbidden
		}
	case att.ComplaintID != nil:
		var c models.Complaint
		if err := v.DB.WithContext(ctx).Select("owner_id").Where("id = ?", *att.ComplaintID).First(&c).Error; err != nil {
			return nil, err
		}
		if c.OwnerID != ownerID {
			return nil, ErrForbidden
		}
	default:
		log.Printf("ERROR: Attachment %s has no owner", att.ID)
		return nil, ErrNotFound
	}
	return &att, nil
}

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return tx
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment kinds.
const (
	KindImage     = "image"
	KindAudio     = "audio"
	KindVideo     = "video"
	KindIDDoc     = "id_document"
	KindSignature = "signature"
)

// Attachment is a binary blob owned by exactly one of a draft or a
// complaint, never both. Finalization flips ownership; the blob is moved,
// not copied.
type Attachment struct {
	ID string `gorm:"primaryKey" json:"id"`
	// DraftID is set while the blob belongs to an in-progress draft.
	DraftID *string `gorm:"type:text;index" json:"draft_id,omitempty"`
	// ComplaintID is set once the finalizer rehomes the blob.
	ComplaintID *string   `gorm:"type:text;index" json:"complaint_id,omitempty"`
	Kind        string    `gorm:"type:text;not null" json:"kind"`
	Filename    string    `gorm:"type:text;not null" json:"filename"`
	ContentType string    `gorm:"type:text;not null" json:"content_type"`
	SizeBytes   int64     `gorm:"not null" json:"size_bytes"`
	Data        []byte    `gorm:"not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}

// Evidence is the finalized record of one piece of complaint evidence,
// pointing at its rehomed attachment.
type Evidence struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	ComplaintID  string    `gorm:"type:text;not null;index" json:"complaint_id"`
	AttachmentID string    `gorm:"type:text;not null" json:"attachment_id"`
	Kind         string    `gorm:"type:text;not null" json:"kind"`
	Filename     string    `gorm:"type:text" json:"filename,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e *Evidence) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return
}

// Signature is the citizen's signature for a finalized complaint.
type Signature struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	ComplaintID  string    `gorm:"type:text;not null;uniqueIndex" json:"complaint_id"`
	AttachmentID string    `gorm:"type:text;not null" json:"attachment_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Signature) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}

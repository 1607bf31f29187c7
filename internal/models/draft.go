package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Intake origins recorded on drafts and complaints.
const (
	OriginChat = "chat"
	OriginForm = "form"
)

// Draft is the ephemeral, single-owner scratchpad for an in-progress
// complaint. It lives at most DraftTTL past CreatedAt: the lazy sweep in the
// draft store finalizes it after that, so "draft exists" and "complaint
// exists for this draft" are never both true.
type Draft struct {
	ID string `gorm:"primaryKey" json:"id"`
	// OwnerID is the reporting citizen; all reads are scoped to it.
	OwnerID string `gorm:"type:text;not null;index;uniqueIndex:ux_draft_owner_conversation,priority:1" json:"owner_id"`
	// ConversationID links chat-originated drafts to their conversation.
	// The composite unique index makes "one draft per (owner, conversation)"
	// hold even under concurrent creates.
	ConversationID *string `gorm:"type:text;uniqueIndex:ux_draft_owner_conversation,priority:2" json:"conversation_id,omitempty"`
	// Fields is the JSON field blob; keys are validated against the closed
	// enumeration at the store boundary.
	Fields FieldMap `gorm:"type:jsonb" json:"fields"`
	// ReadyToSubmit is recomputed on every mutation: true iff type,
	// description, latitude and longitude are all present.
	ReadyToSubmit bool `gorm:"not null;default:false" json:"ready_to_submit"`
	// CreatedAt anchors the TTL. Editing never resets it.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Draft) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return
}

// ExpiresAt is CreatedAt plus the given TTL.
func (d *Draft) ExpiresAt(ttl time.Duration) time.Time {
	return d.CreatedAt.Add(ttl)
}

// Expired reports whether the draft is past its TTL at the given instant.
func (d *Draft) Expired(ttl time.Duration, now time.Time) bool {
	return !now.Before(d.ExpiresAt(ttl))
}

// SecondsLeft returns the whole seconds remaining before expiry, floored at 0.
func (d *Draft) SecondsLeft(ttl time.Duration, now time.Time) int {
	s := int(d.ExpiresAt(ttl).Sub(now).Seconds())
	if s < 0 {
		return 0
	}
	return s
}

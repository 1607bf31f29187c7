package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is an ordered exchange between a citizen and the assistant.
// It is optionally linked to the complaint it produced; the link is set
// exactly once at finalization time and never overwritten.
type Conversation struct {
	ID      string `gorm:"primaryKey" json:"id"`
	OwnerID string `gorm:"type:text;not null;index" json:"owner_id"`
	// ComplaintID is nil until the conversation's draft is finalized.
	ComplaintID *string   `gorm:"type:text;index" json:"complaint_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Message sender values.
const (
	SenderCitizen   = "citizen"
	SenderAssistant = "assistant"
)

// Message is one immutable turn of a conversation. Append-only.
type Message struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"type:text;not null;index:idx_conv_msg" json:"conversation_id"`
	Sender         string    `gorm:"type:text;not null" json:"sender"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Complaint statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusRejected   = "rejected"
)

// Complaint is the durable record of a reported incident. It is created only
// by the finalizer and is immutable after creation except for the staff
// triage fields (status, department, assignee).
type Complaint struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	OwnerID         string    `gorm:"type:text;not null;index" json:"owner_id"`
	TypeID          uint      `gorm:"not null" json:"type_id"`
	Description     string    `gorm:"type:text;not null" json:"description"`
	Reference       string    `gorm:"type:text" json:"reference,omitempty"`
	Latitude        float64   `gorm:"not null" json:"latitude"`
	Longitude       float64   `gorm:"not null" json:"longitude"`
	ResolvedAddress string    `gorm:"type:text" json:"resolved_address,omitempty"`
	Origin          string    `gorm:"type:text;not null" json:"origin"`
	Status          string    `gorm:"type:text;not null;index" json:"status"`
	Department      *string   `gorm:"type:text" json:"department,omitempty"`
	AssigneeID      *string   `gorm:"type:text" json:"assignee_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

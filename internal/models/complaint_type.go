package models

import "github.com/lib/pq"

// ComplaintType is one entry of the active complaint-type catalog.
type ComplaintType struct {
	// ID is the catalog identifier citizens may reference by number.
	ID uint `gorm:"primaryKey" json:"id"`
	// Name is the human-readable label shown to citizens.
	Name string `gorm:"type:text;not null" json:"name"`
	// Keywords are synonym hints matched by the type resolver.
	Keywords pq.StringArray `gorm:"type:text[]" json:"keywords,omitempty"`
	// Active controls whether the type is offered for new complaints.
	Active bool `gorm:"not null;default:true;index" json:"active"`
}

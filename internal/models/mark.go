package models

import "time"

// Mark is an admin annotation attached to an internal route
type Mark struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Mark          string    `gorm:"size:100;not null" json:"mark"`
	Justification string    `gorm:"type:text" json:"justification"`
	InternalRoute string    `gorm:"size:255" json:"internal_route"`
	CreatedBy     uint      `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Mark) TableName() string { return "marks" }

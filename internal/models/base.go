package models

import "time"

// Base is the base model for all entities.
// IDs are sequential integers, matching the identifiers exposed by the public API.
type Base struct {
	ID        uint      `json:"id"        gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

package model

import (
	"time"
)

// Entry is one persisted scalar of the coin store (balance, schedule anchors,
// migration flags). Values are string-encoded.
type Entry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:128" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	Origin    string    `gorm:"size:64;not null;default:''" json:"origin"`
	Version   uint      `gorm:"not null;default:1" json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Entry) TableName() string {
	return "coin_entries"
}

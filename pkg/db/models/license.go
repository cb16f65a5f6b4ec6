package models

import "time"

// License is a single issued key and its lifecycle state.
type License struct {
	Key       string     `gorm:"column:key;primaryKey;size:64"`
	Owner     string     `gorm:"column:owner;not null;index:idx_licenses_owner_created,priority:1"`
	ServerIP  *string    `gorm:"column:server_ip"`
	Active    bool       `gorm:"column:active;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;index:idx_licenses_owner_created,priority:2"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	Notes     string     `gorm:"column:notes;not null"`
}

func (License) TableName() string { return "licenses" }

// Expired reports whether the license has an expiry at or before now.
func (l License) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// BoundAddress returns the recorded first-validation address, or "".
func (l License) BoundAddress() string {
	if l.ServerIP == nil {
		return ""
	}
	return *l.ServerIP
}

package models

import "time"

// ProjectOption is a per-project plugin setting. Keys are namespaced by the
// plugin's conf key, e.g. "trello:token".
type ProjectOption struct {
	ProjectID string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// GroupMeta holds per-group plugin state such as the linked issue id.
type GroupMeta struct {
	GroupID   string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

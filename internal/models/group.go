package models

import "time"

type Group struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	ProjectID string    `gorm:"index" json:"project_id"`
	Message   string    `json:"message"`
	Culprit   string    `json:"culprit"`
	CreatedAt time.Time `json:"created_at"`
}

type Event struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	GroupID   string    `gorm:"index" json:"group_id"`
	Message   string    `json:"message"`
	Body      string    `json:"body"` // rendered stacktrace or message
	CreatedAt time.Time `json:"created_at"`
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/chxlky/sentry-trello/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Groups is the registry of error groups and their events that issue
// plugins act on.
type Groups struct {
	DB *gorm.DB
}

func NewGroups(db *gorm.DB) *Groups {
	return &Groups{DB: db}
}

func (g *Groups) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if err := g.DB.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

func (g *Groups) Get(ctx context.Context, id string) (*models.Group, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var groups []models.Group
	err := g.DB.WithContext(ctx).Where(map[string]any{"id": id}).Limit(1).Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", id, err)
	}
	if len(groups) == 0 {
		return nil, ErrNotFound
	}
	return &groups[0], nil
}

func (g *Groups) AddEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := g.DB.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// LatestEvent returns the most recent event of a group, or an empty event
// when none has been recorded.
func (g *Groups) LatestEvent(ctx context.Context, groupID string) (*models.Event, error) {
	var events []models.Event
	err := g.DB.WithContext(ctx).
		Where(map[string]any{"group_id": groupID}).
		Order("created_at desc").
		Limit(1).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load events for group %s: %w", groupID, err)
	}
	if len(events) == 0 {
		return &models.Event{GroupID: groupID}, nil
	}
	return &events[0], nil
}

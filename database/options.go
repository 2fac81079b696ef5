package database

import (
	"context"

	"github.com/chxlky/sentry-trello/internal/models"
	"github.com/chxlky/sentry-trello/plugin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OptionStore keeps plugin settings and group metadata in sqlite.
type OptionStore struct {
	DB *gorm.DB
}

var _ plugin.OptionStore = (*OptionStore)(nil)

func NewOptionStore(db *gorm.DB) *OptionStore {
	return &OptionStore{DB: db}
}

// Conditions are maps rather than structs: gorm drops zero-valued struct
// fields, which would turn an empty id into a match on every row.
func optionCond(projectID, key string) map[string]any {
	return map[string]any{"project_id": projectID, "key": key}
}

func metaCond(groupID, key string) map[string]any {
	return map[string]any{"group_id": groupID, "key": key}
}

// GetOption returns "" for an option that was never set.
func (s *OptionStore) GetOption(ctx context.Context, projectID, key string) (string, error) {
	var opts []models.ProjectOption
	err := s.DB.WithContext(ctx).
		Where(optionCond(projectID, key)).
		Limit(1).
		Find(&opts).Error
	if err != nil {
		return "", err
	}
	if len(opts) == 0 {
		return "", nil
	}
	return opts[0].Value, nil
}

// SetOption upserts the option. An empty value removes it.
func (s *OptionStore) SetOption(ctx context.Context, projectID, key, value string) error {
	db := s.DB.WithContext(ctx)
	if value == "" {
		return db.Where(optionCond(projectID, key)).
			Delete(&models.ProjectOption{}).Error
	}
	opt := models.ProjectOption{ProjectID: projectID, Key: key, Value: value}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&opt).Error
}

func (s *OptionStore) GetGroupMeta(ctx context.Context, groupID, key string) (string, error) {
	var metas []models.GroupMeta
	err := s.DB.WithContext(ctx).
		Where(metaCond(groupID, key)).
		Limit(1).
		Find(&metas).Error
	if err != nil {
		return "", err
	}
	if len(metas) == 0 {
		return "", nil
	}
	return metas[0].Value, nil
}

func (s *OptionStore) SetGroupMeta(ctx context.Context, groupID, key, value string) error {
	db := s.DB.WithContext(ctx)
	if value == "" {
		return db.Where(metaCond(groupID, key)).
			Delete(&models.GroupMeta{}).Error
	}
	meta := models.GroupMeta{GroupID: groupID, Key: key, Value: value}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error
}

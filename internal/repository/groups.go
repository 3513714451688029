package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/blockedby/channel-map/internal/models"
)

// Change is the previous value of one changed group field.
type Change struct {
	Key   string
	Value string
}

// GroupsRepository handles groups and history_groups table operations
type GroupsRepository struct {
	db *gorm.DB
}

// NewGroupsRepository creates a new groups repository
func NewGroupsRepository(db *gorm.DB) *GroupsRepository {
	return &GroupsRepository{db: db}
}

// GetByChannelID returns a group by telegram id, or nil when it is unknown
func (r *GroupsRepository) GetByChannelID(ctx context.Context, channelID int64) (*models.Group, error) {
	var g models.Group
	err := r.db.WithContext(ctx).Where("id_channel = ?", channelID).First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group by channel id: %w", err)
	}
	return &g, nil
}

// Create inserts a new group
func (r *GroupsRepository) Create(ctx context.Context, g *models.Group) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// ApplyChanges records the previous values in history_groups, stamped with
// the group's last update time, and saves the group with time_updated = now.
// Both happen in one transaction.
func (r *GroupsRepository) ApplyChanges(ctx context.Context, g *models.Group, changes []Change, now int64) error {
	if len(changes) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		history := make([]models.GroupHistory, 0, len(changes))
		for _, c := range changes {
			history = append(history, models.GroupHistory{
				ChannelID:   g.ChannelID,
				TimeCreated: g.TimeUpdated,
				Key:         c.Key,
				Value:       c.Value,
			})
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("save history: %w", err)
		}

		saved := *g
		saved.TimeUpdated = now
		if err := tx.Save(&saved).Error; err != nil {
			return fmt.Errorf("save group: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}
	// only stamp the caller's copy once the row is committed
	g.TimeUpdated = now
	return nil
}

// History returns the recorded changes of a group, oldest first
func (r *GroupsRepository) History(ctx context.Context, channelID int64) ([]models.GroupHistory, error) {
	var out []models.GroupHistory
	err := r.db.WithContext(ctx).
		Where("id_channel = ?", channelID).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("get group history: %w", err)
	}
	return out, nil
}

// ListForMap returns all groups, biggest audience first
func (r *GroupsRepository) ListForMap(ctx context.Context) ([]models.Group, error) {
	var out []models.Group
	err := r.db.WithContext(ctx).
		Order("COALESCE(members_count, 0) DESC").
		Order("COALESCE(messages_count, 0) DESC").
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out, nil
}

// Count returns the number of stored groups
func (r *GroupsRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Group{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return n, nil
}

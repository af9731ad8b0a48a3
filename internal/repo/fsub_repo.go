package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fallenrobot/fallenbot/internal/domain"
)

// AddFSubChannel stores channelID and reports whether it was new. An existing
// row is left untouched.
func AddFSubChannel(ctx context.Context, db *gorm.DB, channelID, addedBy int64) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.FSubChannel{ChannelID: channelID, AddedBy: addedBy, CreatedAt: time.Now().Unix()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RemoveFSubChannel deletes channelID and reports whether it existed.
func RemoveFSubChannel(ctx context.Context, db *gorm.DB, channelID int64) (bool, error) {
	res := db.WithContext(ctx).Delete(&domain.FSubChannel{}, "channel_id = ?", channelID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListFSubChannels returns every channel id, oldest first. Channels added
// within the same second are ordered by id.
func ListFSubChannels(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.FSubChannel{}).
		Order("created_at ASC, channel_id ASC").
		Pluck("channel_id", &ids).Error
	if ids == nil {
		ids = []int64{}
	}
	return ids, err
}

// Package repo implements the data persistence layer for title requests.
// This file provides small aggregate queries used by the /stats command.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/fallenrobot/fallenbot/internal/domain"
)

// RequestsStats returns aggregate counts across the anime_requests table:
// total rows, pending rows, and the number of distinct requesters and chats.
//
// It executes four lightweight COUNT queries. An empty table yields a zero
// value without error.
func RequestsStats(ctx context.Context, db *gorm.DB) (domain.RequestStats, error) {
	var st domain.RequestStats
	q := func() *gorm.DB { return db.WithContext(ctx).Model(&domain.Request{}) }

	if err := q().Count(&st.Total).Error; err != nil {
		return domain.RequestStats{}, err
	}
	if st.Total == 0 {
		return st, nil
	}
	if err := q().Where("fulfilled = ?", false).Count(&st.Pending).Error; err != nil {
		return domain.RequestStats{}, err
	}
	if err := q().Distinct("user_id").Count(&st.Users).Error; err != nil {
		return domain.RequestStats{}, err
	}
	if err := q().Distinct("chat_id").Count(&st.Chats).Error; err != nil {
		return domain.RequestStats{}, err
	}
	return st, nil
}

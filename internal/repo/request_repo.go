// Package repo implements the data persistence layer for title requests,
// backed by GORM. This file provides repository functions for the Request
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a request is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - A second pending request for the same (chat_id, anilist_id) violates
//     the partial unique index and is returned as ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
//
// Functions:
//
//   - CreateRequest(ctx, db, req) -> error
//   - CountPendingByUser(ctx, db, userID, chatID) -> (int64, error)
//   - PendingTitleExists(ctx, db, chatID, anilistID) -> (bool, error)
//   - ListPendingByChat(ctx, db, chatID) -> ([]domain.Request, error)
//   - ListByUser(ctx, db, userID, chatID, limit) -> ([]domain.Request, error)
//   - GetRequest(ctx, db, id) -> (*domain.Request, error)
//   - MarkFulfilled(ctx, db, id) -> error
//   - DeleteRequest(ctx, db, id) -> error
//
// The functions are wrapped by SQLStore, which satisfies the store contract
// consumed by services.RequestService.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fallenrobot/fallenbot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a pending request for the same title already
// exists in the conversation.
var ErrDuplicate = errors.New("duplicate pending request")

// CreateRequest inserts req and fills in its auto-assigned ID. CreatedAt is
// stamped with the current Unix time when zero. Unique violations are mapped
// to ErrDuplicate.
func CreateRequest(ctx context.Context, db *gorm.DB, req *domain.Request) error {
	if req.CreatedAt == 0 {
		req.CreatedAt = time.Now().Unix()
	}
	req.Fulfilled = false
	if err := db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CountPendingByUser returns how many unfulfilled requests userID has in chatID.
func CountPendingByUser(ctx context.Context, db *gorm.DB, userID, chatID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Request{}).
		Where("user_id = ? AND chat_id = ? AND fulfilled = ?", userID, chatID, false).
		Count(&n).Error
	return n, err
}

// PendingTitleExists reports whether chatID already has an unfulfilled
// request for the catalog title anilistID.
func PendingTitleExists(ctx context.Context, db *gorm.DB, chatID, anilistID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Request{}).
		Where("chat_id = ? AND anilist_id = ? AND fulfilled = ?", chatID, anilistID, false).
		Count(&n).Error
	return n > 0, err
}

// ListPendingByChat returns all unfulfilled requests of chatID, oldest first.
func ListPendingByChat(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.Request, error) {
	var out []domain.Request
	err := db.WithContext(ctx).
		Where("chat_id = ? AND fulfilled = ?", chatID, false).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListByUser returns up to limit requests of userID in chatID: unfulfilled
// first, each group newest first.
func ListByUser(ctx context.Context, db *gorm.DB, userID, chatID int64, limit int) ([]domain.Request, error) {
	var out []domain.Request
	err := db.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Order("fulfilled asc").
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetRequest fetches a single request by id, or ErrNotFound.
func GetRequest(ctx context.Context, db *gorm.DB, id int64) (*domain.Request, error) {
	var r domain.Request
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkFulfilled sets fulfilled=true on request id in a single UPDATE.
// Fulfilling an already fulfilled request succeeds; a missing id yields
// ErrNotFound.
//
// SQLite counts matched rows, so zero affected rows normally means the id is
// absent; the follow-up count covers drivers that only report changed rows.
func MarkFulfilled(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Request{}).
		Where("id = ?", id).
		Update("fulfilled", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Request{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRequest removes request id. If no rows are affected it returns
// ErrNotFound.
func DeleteRequest(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Request{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation detects unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fallenrobot/fallenbot/internal/domain"
)

// SQLStore adapts the repository free functions to the request store
// contract expected by services.RequestService. Not-found outcomes of
// fulfilment and deletion are reported as false rather than errors.
type SQLStore struct {
	DB *gorm.DB
}

// NewSQLStore wraps db.
func NewSQLStore(db *gorm.DB) *SQLStore { return &SQLStore{DB: db} }

// Insert proxies CreateRequest.
func (s *SQLStore) Insert(ctx context.Context, req *domain.Request) error {
	return CreateRequest(ctx, s.DB, req)
}

// CountPending proxies CountPendingByUser.
func (s *SQLStore) CountPending(ctx context.Context, userID, chatID int64) (int64, error) {
	return CountPendingByUser(ctx, s.DB, userID, chatID)
}

// PendingExists proxies PendingTitleExists.
func (s *SQLStore) PendingExists(ctx context.Context, chatID, anilistID int64) (bool, error) {
	return PendingTitleExists(ctx, s.DB, chatID, anilistID)
}

// ListPending proxies ListPendingByChat.
func (s *SQLStore) ListPending(ctx context.Context, chatID int64) ([]domain.Request, error) {
	return ListPendingByChat(ctx, s.DB, chatID)
}

// ListByUser proxies ListByUser.
func (s *SQLStore) ListByUser(ctx context.Context, userID, chatID int64, limit int) ([]domain.Request, error) {
	return ListByUser(ctx, s.DB, userID, chatID, limit)
}

// SetFulfilled proxies MarkFulfilled.
func (s *SQLStore) SetFulfilled(ctx context.Context, id int64) (bool, error) {
	return found(MarkFulfilled(ctx, s.DB, id))
}

// Delete proxies DeleteRequest.
func (s *SQLStore) Delete(ctx context.Context, id int64) (bool, error) {
	return found(DeleteRequest(ctx, s.DB, id))
}

// Stats proxies RequestsStats.
func (s *SQLStore) Stats(ctx context.Context) (domain.RequestStats, error) {
	return RequestsStats(ctx, s.DB)
}

// Ping checks the underlying connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func found(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// AddChannel proxies AddFSubChannel.
func (s *SQLStore) AddChannel(ctx context.Context, channelID, addedBy int64) (bool, error) {
	return AddFSubChannel(ctx, s.DB, channelID, addedBy)
}

// RemoveChannel proxies RemoveFSubChannel.
func (s *SQLStore) RemoveChannel(ctx context.Context, channelID int64) (bool, error) {
	return RemoveFSubChannel(ctx, s.DB, channelID)
}

// ListChannels proxies ListFSubChannels.
func (s *SQLStore) ListChannels(ctx context.Context) ([]int64, error) {
	return ListFSubChannels(ctx, s.DB)
}

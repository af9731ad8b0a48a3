package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultChannelCacheTTL bounds how stale the force-subscribe list may be.
// Add and Remove invalidate it immediately.
const DefaultChannelCacheTTL = 30 * time.Second

// ErrInvalidChannel is returned for a zero channel id.
var ErrInvalidChannel = errors.New("invalid channel id")

// ChannelStore persists the bot-wide force-subscribe channel list.
// repo.SQLStore and repo.RedisStore both satisfy it.
type ChannelStore interface {
	AddChannel(ctx context.Context, channelID, addedBy int64) (bool, error)
	RemoveChannel(ctx context.Context, channelID int64) (bool, error)
	ListChannels(ctx context.Context) ([]int64, error)
}

// SubscriptionService manages force-subscribe channels. The list is read on
// every gated command, so it is cached for CacheTTL.
type SubscriptionService struct {
	Store    ChannelStore
	CacheTTL time.Duration
	Now      func() time.Time

	mu       sync.Mutex
	cached   []int64
	cachedAt time.Time
	valid    bool
}

// NewSubscriptionService wires a service with the default cache TTL.
func NewSubscriptionService(store ChannelStore) *SubscriptionService {
	return &SubscriptionService{Store: store, CacheTTL: DefaultChannelCacheTTL, Now: time.Now}
}

// Add registers channelID and reports whether it was new.
func (s *SubscriptionService) Add(ctx context.Context, channelID, addedBy int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "fsub.Add",
		trace.WithAttributes(attribute.Int64("channel.id", channelID), attribute.Int64("user.id", addedBy)),
	)
	defer span.End()

	if channelID == 0 {
		return false, ErrInvalidChannel
	}
	added, err := s.Store.AddChannel(ctx, channelID, addedBy)
	if err != nil {
		return false, markFailed(span, storeErr("add channel", err))
	}
	s.invalidate()
	return added, nil
}

// Remove drops channelID and reports whether it was registered.
func (s *SubscriptionService) Remove(ctx context.Context, channelID int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "fsub.Remove",
		trace.WithAttributes(attribute.Int64("channel.id", channelID)),
	)
	defer span.End()

	removed, err := s.Store.RemoveChannel(ctx, channelID)
	if err != nil {
		return false, markFailed(span, storeErr("remove channel", err))
	}
	s.invalidate()
	return removed, nil
}

// Channels returns the registered channel ids, oldest first. Callers get a
// copy they may modify.
func (s *SubscriptionService) Channels(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.valid && (s.CacheTTL <= 0 || now.Sub(s.cachedAt) < s.CacheTTL) {
		return append([]int64(nil), s.cached...), nil
	}

	ctx, span := tracer.Start(ctx, "fsub.Channels")
	defer span.End()

	ids, err := s.Store.ListChannels(ctx)
	if err != nil {
		return nil, markFailed(span, storeErr("list channels", err))
	}
	s.cached, s.cachedAt, s.valid = ids, now, true
	return append([]int64(nil), ids...), nil
}

func (s *SubscriptionService) invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

func (s *SubscriptionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

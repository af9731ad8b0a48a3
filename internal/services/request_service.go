// Package services – RequestService
//
// This file implements the request admission pipeline. Submit validates a
// free-text title query, applies the per-user cooldown and pending cap, resolves
// the title against the catalog, rejects duplicates within the chat, and
// persists the request. Administrators list, fulfil and delete requests through
// the remaining methods; authorization is the caller's concern.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fallenrobot/fallenbot/internal/domain"
	"github.com/fallenrobot/fallenbot/internal/repo"
)

// Defaults applied by NewRequestService.
const (
	DefaultCooldown      = 300 * time.Second
	DefaultMaxPending    = 5
	DefaultListLimit     = 10
	DefaultLookupTimeout = 8 * time.Second
)

// RequestStore is the persistence contract consumed by RequestService.
// repo.SQLStore and repo.RedisStore both satisfy it. Insert must return
// repo.ErrDuplicate when the (chat, catalog id) pair is already pending.
type RequestStore interface {
	Insert(ctx context.Context, req *domain.Request) error
	CountPending(ctx context.Context, userID, chatID int64) (int64, error)
	PendingExists(ctx context.Context, chatID, anilistID int64) (bool, error)
	ListPending(ctx context.Context, chatID int64) ([]domain.Request, error)
	ListByUser(ctx context.Context, userID, chatID int64, limit int) ([]domain.Request, error)
	SetFulfilled(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (domain.RequestStats, error)
}

// Catalog resolves a free-text query to a catalog entry.
type Catalog interface {
	Lookup(ctx context.Context, query string) (*domain.CatalogEntry, error)
}

// RequestService coordinates request admission and administration.
type RequestService struct {
	Store     RequestStore
	Catalog   Catalog
	Cooldowns CooldownStore

	Cooldown      time.Duration
	MaxPending    int64
	ListLimit     int
	LookupTimeout time.Duration

	// Now is the clock; tests replace it.
	Now func() time.Time

	// writeMu serializes the final check-then-insert step of Submit.
	writeMu sync.Mutex
}

// NewRequestService wires a service with default limits and an in-memory
// cooldown store.
func NewRequestService(store RequestStore, catalog Catalog) *RequestService {
	return &RequestService{
		Store:         store,
		Catalog:       catalog,
		Cooldowns:     NewMemoryCooldowns(),
		Cooldown:      DefaultCooldown,
		MaxPending:    DefaultMaxPending,
		ListLimit:     DefaultListLimit,
		LookupTimeout: DefaultLookupTimeout,
		Now:           time.Now,
	}
}

var tracer = otel.Tracer("services/RequestService")

// Submit admits a new request for rawText from userID in chatID. Checks run in
// order and the first failure wins: empty query, cooldown, pending cap,
// catalog lookup, duplicate. The cooldown is stamped only after the insert
// succeeds.
func (s *RequestService) Submit(ctx context.Context, userID, chatID int64, rawText string) (*domain.Request, error) {
	ctx, span := tracer.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("chat.id", chatID),
		),
	)
	defer span.End()

	query := strings.TrimSpace(rawText)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if rem := s.cooldownRemaining(userID); rem > 0 {
		return nil, &CooldownError{Remaining: rem}
	}

	if err := s.checkPending(ctx, userID, chatID); err != nil {
		return nil, s.fail(span, err)
	}

	entry := s.lookup(ctx, query)
	if entry == nil {
		return nil, &NotRecognizedError{Query: rawText}
	}
	title := entry.CanonicalTitle()
	span.SetAttributes(attribute.Int64("anilist.id", entry.ID))

	// The lookup runs unlocked; limits are re-checked before the insert so
	// concurrent submissions cannot overshoot them.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if rem := s.cooldownRemaining(userID); rem > 0 {
		return nil, &CooldownError{Remaining: rem}
	}
	if err := s.checkPending(ctx, userID, chatID); err != nil {
		return nil, s.fail(span, err)
	}
	exists, err := s.Store.PendingExists(ctx, chatID, entry.ID)
	if err != nil {
		return nil, s.fail(span, storeErr("duplicate check", err))
	}
	if exists {
		return nil, &DuplicateError{Title: title}
	}

	req := &domain.Request{
		UserID:         userID,
		ChatID:         chatID,
		RawQuery:       query,
		ValidatedTitle: title,
		AnilistID:      entry.ID,
		AnilistURL:     entry.URL,
		CreatedAt:      s.now().Unix(),
	}
	if err := s.Store.Insert(ctx, req); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, &DuplicateError{Title: title}
		}
		return nil, s.fail(span, storeErr("insert", err))
	}
	s.Cooldowns.Set(userID, s.now())
	req.Entry = entry
	span.SetAttributes(attribute.Int64("request.id", req.ID))
	return req, nil
}

// Admissible runs the cheap Submit checks (cooldown, pending cap) without a
// catalog lookup, so callers can reject early before showing progress. Submit
// repeats them; a nil result is not a reservation.
func (s *RequestService) Admissible(ctx context.Context, userID, chatID int64) error {
	ctx, span := tracer.Start(ctx, "Admissible",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("chat.id", chatID),
		),
	)
	defer span.End()

	if rem := s.cooldownRemaining(userID); rem > 0 {
		return &CooldownError{Remaining: rem}
	}
	return s.fail(span, s.checkPending(ctx, userID, chatID))
}

// ListMine returns userID's requests in chatID, unfulfilled first and newest
// first within each group. limit <= 0 uses ListLimit.
func (s *RequestService) ListMine(ctx context.Context, userID, chatID int64, limit int) ([]domain.Request, error) {
	ctx, span := tracer.Start(ctx, "ListMine",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("chat.id", chatID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = s.ListLimit
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	out, err := s.Store.ListByUser(ctx, userID, chatID, limit)
	if err != nil {
		return nil, s.fail(span, storeErr("list by user", err))
	}
	return out, nil
}

// ListPending returns every unfulfilled request in chatID, oldest first.
func (s *RequestService) ListPending(ctx context.Context, chatID int64) ([]domain.Request, error) {
	ctx, span := tracer.Start(ctx, "ListPending",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	out, err := s.Store.ListPending(ctx, chatID)
	if err != nil {
		return nil, s.fail(span, storeErr("list pending", err))
	}
	return out, nil
}

// Fulfill marks request id fulfilled and reports whether it exists.
// Repeated calls keep returning true.
func (s *RequestService) Fulfill(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "Fulfill",
		trace.WithAttributes(attribute.Int64("request.id", id)),
	)
	defer span.End()

	ok, err := s.Store.SetFulfilled(ctx, id)
	if err != nil {
		return false, s.fail(span, storeErr("fulfil", err))
	}
	return ok, nil
}

// Delete removes request id and reports whether it existed.
func (s *RequestService) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("request.id", id)),
	)
	defer span.End()

	ok, err := s.Store.Delete(ctx, id)
	if err != nil {
		return false, s.fail(span, storeErr("delete", err))
	}
	return ok, nil
}

// Stats returns aggregate request counts.
func (s *RequestService) Stats(ctx context.Context) (domain.RequestStats, error) {
	ctx, span := tracer.Start(ctx, "Stats")
	defer span.End()

	st, err := s.Store.Stats(ctx)
	if err != nil {
		return domain.RequestStats{}, s.fail(span, storeErr("stats", err))
	}
	return st, nil
}

// SweepCooldowns drops expired cooldown entries when the store supports it.
func (s *RequestService) SweepCooldowns() int {
	p, ok := s.Cooldowns.(interface {
		Prune(now time.Time, window time.Duration) int
	})
	if !ok {
		return 0
	}
	return p.Prune(s.now(), s.Cooldown)
}

// checkPending returns a *PendingLimitError when the cap is reached, or a
// wrapped store error.
func (s *RequestService) checkPending(ctx context.Context, userID, chatID int64) error {
	n, err := s.Store.CountPending(ctx, userID, chatID)
	if err != nil {
		return storeErr("count pending", err)
	}
	if n >= s.MaxPending {
		return &PendingLimitError{Count: n}
	}
	return nil
}

func (s *RequestService) cooldownRemaining(userID int64) time.Duration {
	if s.Cooldown <= 0 {
		return 0
	}
	last, ok := s.Cooldowns.Get(userID)
	if !ok {
		return 0
	}
	if elapsed := s.now().Sub(last); elapsed < s.Cooldown {
		return s.Cooldown - elapsed
	}
	return 0
}

// lookup calls the catalog under LookupTimeout. Errors and timeouts are
// folded into "no match".
func (s *RequestService) lookup(ctx context.Context, query string) *domain.CatalogEntry {
	if s.Catalog == nil || query == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "lookup", trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	if s.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.LookupTimeout)
		defer cancel()
	}
	entry, err := s.Catalog.Lookup(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil
	}
	if entry == nil || entry.ID == 0 || entry.CanonicalTitle() == "" {
		return nil
	}
	return entry
}

func (s *RequestService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// fail marks span as failed for store errors; rejections pass through.
func (s *RequestService) fail(span trace.Span, err error) error {
	return markFailed(span, err)
}

func markFailed(span trace.Span, err error) error {
	if err == nil || !errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Package services defines the business logic for anime title requests.
// This file centralizes the service-level error values returned by
// RequestService so that callers can check them consistently.
//
// Rejections (empty query, cooldown, pending limit, unrecognized title,
// duplicate) are expected outcomes that the user can act on. Translation into
// chat replies or HTTP status codes happens at the bot/handler layer.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyQuery is returned when a submission carries no query text.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrStoreUnavailable wraps every persistence failure surfaced by
	// RequestService. It is the only error worth operator attention.
	ErrStoreUnavailable = errors.New("request store unavailable")
)

// CooldownError rejects a submission made too soon after the requester's
// previous one.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %s remaining", e.Remaining)
}

// PendingLimitError rejects a submission when the requester already has
// Count unfulfilled requests in the chat.
type PendingLimitError struct {
	Count int64
}

func (e *PendingLimitError) Error() string {
	return fmt.Sprintf("pending limit reached: %d unresolved requests", e.Count)
}

// NotRecognizedError rejects a query the catalog could not resolve. Lookup
// failures and timeouts are reported the same way. Query is the text exactly
// as submitted; the catalog is searched with it trimmed.
type NotRecognizedError struct {
	Query string
}

func (e *NotRecognizedError) Error() string {
	return fmt.Sprintf("title not recognized: %q", e.Query)
}

// DuplicateError rejects a title that is already pending in the chat.
type DuplicateError struct {
	Title string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("already requested: %q", e.Title)
}

// IsRejection reports whether err is a user-recoverable Submit rejection.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}
	var (
		cd  *CooldownError
		pl  *PendingLimitError
		nr  *NotRecognizedError
		dup *DuplicateError
	)
	return errors.Is(err, ErrEmptyQuery) ||
		errors.As(err, &cd) ||
		errors.As(err, &pl) ||
		errors.As(err, &nr) ||
		errors.As(err, &dup)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

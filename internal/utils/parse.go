// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// ClampLimit parses s as a list limit. Empty or malformed input yields def,
// and the result is capped to [1, max]. A max <= 0 disables the upper bound.
//
// Example:
//
//	n := utils.ClampLimit("25", 10, 50) // 25
//	n = utils.ClampLimit("", 10, 50)    // 10
//	n = utils.ClampLimit("500", 10, 50) // 50
func ClampLimit(s string, def, max int) int {
	n := def
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		n = v
	}
	if n < 1 {
		n = 1
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// ParseID parses a positive decimal identifier such as a request id or a
// Telegram user id. A leading '#' is accepted so "#12" reads like "12".
func ParseID(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseChatID parses a Telegram chat id. Group and channel ids are negative,
// so any non-zero value is accepted.
func ParseChatID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

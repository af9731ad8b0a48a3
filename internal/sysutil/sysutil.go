// Package sysutil holds small process helpers: log level and env value
// parsing, and host resource sampling for the stats commands.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// ParseLogLevel maps a level name (case-insensitive, "warning" accepted) to a
// zerolog level. Empty and unknown names yield info.
func ParseLogLevel(lvl string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogLevel sets the global zerolog level from a name and returns the level
// that was applied.
func SetLogLevel(lvl string) zerolog.Level {
	l := ParseLogLevel(lvl)
	zerolog.SetGlobalLevel(l)
	return l
}

// ParseBool reads an env-style switch. It accepts 1/0, true/false, yes/no,
// y/n and on/off in any case; ok is false for anything else.
func ParseBool(v string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// Package util holds small environment parsing helpers used by cmd/docpipe.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean flag from the environment. Unset variables
// fall back to defaultValue; so do values outside the accepted set
// (true/1/yes/on, false/0/no/off, any case), with a warning.
func ParseBoolEnv(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("util.ParseBoolEnv: unrecognized boolean value, using default",
		"key", key, "value", raw, "default", defaultValue)
	return defaultValue
}

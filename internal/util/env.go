// Package util provides environment variable parsing helpers shared across components.
package util

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv parses a boolean environment variable with a default value.
// Accepts: true/1/yes/on and false/0/no/off (case-insensitive). Invalid values return default.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: invalid boolean value, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}

// ParseStringListEnv parses a list-valued environment variable. The value may
// be a JSON array of strings or a comma-separated list; entries are trimmed
// and empties dropped. Returns nil when the variable is unset or yields no
// entries.
func ParseStringListEnv(key string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return nil
	}

	var items []string
	if err := json.Unmarshal([]byte(val), &items); err == nil {
		items = trimNonEmpty(items)
		if len(items) > 0 {
			slog.Debug("ParseStringListEnv: parsed JSON array", "key", key, "count", len(items))
			return items
		}
		return nil
	}

	items = trimNonEmpty(strings.Split(val, ","))
	if len(items) == 0 {
		return nil
	}
	slog.Debug("ParseStringListEnv: parsed comma-separated list", "key", key, "count", len(items))
	return items
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/domain"
)

// LookupFunc matches os.LookupEnv so tests can inject a map.
type LookupFunc func(key string) (string, bool)

// env reads typed values and keeps the first error it meets, so Load can
// read every variable in one pass and report a single failure.
type env struct {
	lookup LookupFunc
	err    error
}

func (e *env) fail(key, reason string) {
	if e.err == nil {
		e.err = &Error{Key: key, Reason: reason}
	}
}

func (e *env) raw(key string) string {
	v, ok := e.lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (e *env) getenv(key, def string) string {
	if v := e.raw(key); v != "" {
		return v
	}
	return def
}

func (e *env) requireEnv(key string) string {
	v := e.raw(key)
	if v == "" {
		e.fail(key, "required but not set")
	}
	return v
}

func (e *env) getenvInt(key string, def int) int {
	v := e.raw(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, "invalid integer "+strconv.Quote(v))
		return def
	}
	return i
}

func (e *env) positiveFloat(key string, def float64) float64 {
	v := e.raw(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, "invalid number "+strconv.Quote(v))
		return def
	}
	if !domain.PositiveFinite(f) {
		e.fail(key, "must be a finite number > 0")
		return def
	}
	return f
}

func (e *env) mustBool(key string, def bool) bool {
	v := e.raw(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, "invalid boolean "+strconv.Quote(v))
		return def
	}
	return b
}

func (e *env) mustDuration(key string, def time.Duration) time.Duration {
	v := e.raw(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, "invalid duration "+strconv.Quote(v))
		return def
	}
	if d <= 0 {
		e.fail(key, "must be > 0")
		return def
	}
	return d
}

func (e *env) list(key string) []string {
	return splitAndTrim(e.raw(key))
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

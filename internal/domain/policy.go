package domain

import (
	"fmt"
	"math"
	"strings"
)

// Policy holds the thresholds and scoping rules for a sweep.
type Policy struct {
	Labels             []string // allow-list, lower-case
	ExcludedTrackers   []string // hostname tokens, lower-case
	MaxRatio           float64
	DeadRetentionHours float64
	MaxAgeHours        float64
	DryRun             bool
}

// Validate checks that every threshold is a positive finite number.
func (p Policy) Validate() error {
	if !PositiveFinite(p.MaxRatio) {
		return fmt.Errorf("max ratio must be a finite number > 0, got %v", p.MaxRatio)
	}
	if !PositiveFinite(p.DeadRetentionHours) {
		return fmt.Errorf("dead retention hours must be a finite number > 0, got %v", p.DeadRetentionHours)
	}
	if !PositiveFinite(p.MaxAgeHours) {
		return fmt.Errorf("max age hours must be a finite number > 0, got %v", p.MaxAgeHours)
	}
	return nil
}

// PositiveFinite reports whether v is usable as a threshold. NaN fails.
func PositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Normalized returns a copy with labels and tracker tokens lower-cased,
// trimmed and de-duplicated.
func (p Policy) Normalized() Policy {
	p.Labels = NormalizeList(p.Labels)
	p.ExcludedTrackers = NormalizeList(p.ExcludedTrackers)
	return p
}

// NormalizeList lower-cases and trims entries, dropping blanks and duplicates
// while keeping first-seen order.
func NormalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

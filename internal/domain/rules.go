package domain

import (
	"fmt"
	"strconv"
)

// Reason tags why a torrent is being removed.
type Reason string

const (
	ReasonNone  Reason = ""
	ReasonRatio Reason = "ratio"
	ReasonDead  Reason = "dead"
	ReasonTTL   Reason = "ttl"
)

// Reasons lists every removal reason in precedence order.
var Reasons = []Reason{ReasonRatio, ReasonDead, ReasonTTL}

// Decision is the outcome of evaluating one torrent.
type Decision struct {
	Reason Reason
	Detail string
}

// Remove reports whether the decision calls for removal.
func (d Decision) Remove() bool {
	return d.Reason != ReasonNone
}

// Evaluate runs the removal rules in order (ratio, dead, ttl) and returns the
// first match. The remaining rules are not consulted.
func Evaluate(t Torrent, p Policy) Decision {
	if d, ok := ratioRule(t, p); ok {
		return d
	}
	if d, ok := deadRule(t, p); ok {
		return d
	}
	if d, ok := ttlRule(t, p); ok {
		return d
	}
	return Decision{}
}

func ratioRule(t Torrent, p Policy) (Decision, bool) {
	// -1 must be excluded before comparing, whatever the threshold.
	if !t.HasRatio() || !(t.UploadRatio >= p.MaxRatio) {
		return Decision{}, false
	}
	return Decision{
		Reason: ReasonRatio,
		Detail: fmt.Sprintf("Ratio %.2f ≥ %s", t.UploadRatio, formatThreshold(p.MaxRatio)),
	}, true
}

func deadRule(t Torrent, p Policy) (Decision, bool) {
	if t.IsComplete() || !(t.AgeHours >= p.DeadRetentionHours) {
		return Decision{}, false
	}
	return Decision{
		Reason: ReasonDead,
		Detail: fmt.Sprintf("Incomplete %.1f%% after %.1fh ≥ %sh",
			t.PercentDone, t.AgeHours, strconv.FormatFloat(p.DeadRetentionHours, 'f', -1, 64)),
	}, true
}

func ttlRule(t Torrent, p Policy) (Decision, bool) {
	if !(t.AgeHours >= p.MaxAgeHours) {
		return Decision{}, false
	}
	return Decision{
		Reason: ReasonTTL,
		Detail: fmt.Sprintf("Age %.1fh ≥ %sh", t.AgeHours, strconv.FormatFloat(p.MaxAgeHours, 'f', -1, 64)),
	}, true
}

// formatThreshold prints whole numbers with one decimal ("2.0") and keeps
// full precision otherwise ("1.25").
func formatThreshold(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

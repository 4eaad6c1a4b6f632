package domain

import (
	"net/url"
	"strings"
)

// Filter decides which torrents the sweep is allowed to touch.
type Filter struct {
	labels   map[string]struct{}
	excluded []string
}

// NewFilter builds a filter from an allow-list of labels and a list of
// excluded tracker tokens. An empty allow-list admits nothing.
func NewFilter(labels, excludedTrackers []string) *Filter {
	f := &Filter{
		labels:   make(map[string]struct{}, len(labels)),
		excluded: NormalizeList(excludedTrackers),
	}
	for _, l := range NormalizeList(labels) {
		f.labels[l] = struct{}{}
	}
	return f
}

// NewFilterFromPolicy is NewFilter over a policy's scoping lists.
func NewFilterFromPolicy(p Policy) *Filter {
	return NewFilter(p.Labels, p.ExcludedTrackers)
}

// Eligible reports whether the torrent carries an allowed label and is not
// announced to an excluded tracker.
func (f *Filter) Eligible(t Torrent) bool {
	return f.LabelAllowed(t) && !f.TrackerExcluded(t)
}

// LabelAllowed reports whether the torrent's label is in the allow-list.
func (f *Filter) LabelAllowed(t Torrent) bool {
	_, ok := f.labels[strings.ToLower(t.Label)]
	return ok
}

// TrackerExcluded reports whether any announce host contains an excluded token.
func (f *Filter) TrackerExcluded(t Torrent) bool {
	if len(f.excluded) == 0 {
		return false
	}
	for _, announce := range t.Trackers {
		host := announceHost(announce)
		for _, token := range f.excluded {
			if strings.Contains(host, token) {
				return true
			}
		}
	}
	return false
}

// Apply returns the eligible subset, preserving order.
func (f *Filter) Apply(torrents []Torrent) []Torrent {
	out := make([]Torrent, 0, len(torrents))
	for _, t := range torrents {
		if f.Eligible(t) {
			out = append(out, t)
		}
	}
	return out
}

// announceHost extracts the lower-cased hostname of an announce URL. Values
// that do not parse to a host are matched on their raw text.
func announceHost(announce string) string {
	u, err := url.Parse(strings.TrimSpace(announce))
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(announce)
	}
	return strings.ToLower(u.Hostname())
}

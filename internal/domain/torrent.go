package domain

import (
	"strings"
	"time"
)

// RatioUndefined is the daemon's sentinel for a ratio it has not computed yet.
const RatioUndefined = -1.0

// RawTorrent is a torrent as returned by the daemon, with every absent field
// already defaulted to its zero value.
type RawTorrent struct {
	ID           int64
	Name         string
	PercentDone  float64 // fraction in [0,1]
	UploadRatio  float64
	AddedDate    int64 // unix seconds
	DownloadDir  string
	Labels       []string
	Trackers     []string // announce URLs
	ErrorCode    int
	ErrorMessage string
}

// Torrent is the normalized snapshot the filter and rule engine work on.
// It is built once per run by Hydrate and never mutated afterwards.
type Torrent struct {
	ID           int64
	Name         string
	PercentDone  float64 // percentage in [0,100]
	UploadRatio  float64
	AddedAt      time.Time
	AgeHours     float64
	Label        string
	Trackers     []string
	ErrorCode    int
	ErrorMessage string
}

// Hydrate normalizes a raw torrent against the given clock reading.
func Hydrate(raw RawTorrent, now time.Time) Torrent {
	added := time.Unix(raw.AddedDate, 0)

	trackers := make([]string, len(raw.Trackers))
	copy(trackers, raw.Trackers)

	return Torrent{
		ID:           raw.ID,
		Name:         raw.Name,
		PercentDone:  raw.PercentDone * 100,
		UploadRatio:  raw.UploadRatio,
		AddedAt:      added,
		AgeHours:     now.Sub(added).Hours(),
		Label:        deriveLabel(raw.Labels, raw.DownloadDir),
		Trackers:     trackers,
		ErrorCode:    raw.ErrorCode,
		ErrorMessage: raw.ErrorMessage,
	}
}

// HydrateAll is Hydrate over a whole fetch, sharing one clock reading.
func HydrateAll(raws []RawTorrent, now time.Time) []Torrent {
	out := make([]Torrent, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Hydrate(raw, now))
	}
	return out
}

// HasRatio reports whether the daemon has computed a ratio for the torrent.
func (t Torrent) HasRatio() bool {
	return t.UploadRatio != RatioUndefined
}

// IsComplete reports whether the payload is fully downloaded.
func (t Torrent) IsComplete() bool {
	return t.PercentDone >= 100
}

// deriveLabel returns the first explicit label, or the last segment of the
// download directory when the torrent has none.
func deriveLabel(labels []string, downloadDir string) string {
	if len(labels) > 0 {
		return strings.TrimSpace(labels[0])
	}

	dir := strings.TrimRight(downloadDir, `/\`)
	if i := strings.LastIndexAny(dir, `/\`); i >= 0 {
		return dir[i+1:]
	}
	return dir
}

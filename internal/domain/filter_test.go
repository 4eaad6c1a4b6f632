package domain

import (
	"testing"
	"time"
)

func TestFilterEligible(t *testing.T) {
	tests := []struct {
		name     string
		labels   []string
		excluded []string
		torrent  Torrent
		want     bool
	}{
		{
			name:    "empty allow-list admits nothing",
			labels:  nil,
			torrent: Torrent{Label: "tv"},
			want:    false,
		},
		{
			name:    "label allowed, no exclusions",
			labels:  []string{"tv"},
			torrent: Torrent{Label: "tv", Trackers: []string{"https://tracker.example.org/announce"}},
			want:    true,
		},
		{
			name:    "label compared case-insensitively",
			labels:  []string{"TV "},
			torrent: Torrent{Label: "Tv"},
			want:    true,
		},
		{
			name:    "label not allowed",
			labels:  []string{"tv"},
			torrent: Torrent{Label: "movies"},
			want:    false,
		},
		{
			name:     "excluded tracker host substring",
			labels:   []string{"tv"},
			excluded: []string{"Private"},
			torrent: Torrent{Label: "tv", Trackers: []string{
				"udp://open.example.org:1337/announce",
				"https://tracker.PRIVATE-site.net/abc/announce",
			}},
			want: false,
		},
		{
			name:     "token only in path does not exclude",
			labels:   []string{"tv"},
			excluded: []string{"private"},
			torrent:  Torrent{Label: "tv", Trackers: []string{"https://open.example.org/private/announce"}},
			want:     true,
		},
		{
			name:     "no trackers never excluded",
			labels:   []string{"tv"},
			excluded: []string{"private"},
			torrent:  Torrent{Label: "tv"},
			want:     true,
		},
		{
			name:     "unparsable announce falls back to raw text",
			labels:   []string{"tv"},
			excluded: []string{"private"},
			torrent:  Torrent{Label: "tv", Trackers: []string{"private tracker"}},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.labels, tt.excluded)
			if got := f.Eligible(tt.torrent); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterApplyIsSubset(t *testing.T) {
	torrents := []Torrent{
		{ID: 1, Label: "tv"},
		{ID: 2, Label: "movies"},
		{ID: 3, Label: "tv", Trackers: []string{"https://bad.example.org/announce"}},
		{ID: 4, Label: "TV"},
	}

	f := NewFilterFromPolicy(Policy{Labels: []string{"tv"}, ExcludedTrackers: []string{"bad"}})
	got := f.Apply(torrents)

	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 4 {
		t.Fatalf("Apply() = %+v, want IDs [1 4]", got)
	}
}

func TestFilterPaddedDaemonLabel(t *testing.T) {
	f := NewFilter([]string{"tv"}, nil)
	tr := Hydrate(RawTorrent{ID: 1, Labels: []string{"tv "}}, time.Now())
	if !f.Eligible(tr) {
		t.Errorf("torrent labelled %q not eligible for allow-list [tv]", "tv ")
	}
}

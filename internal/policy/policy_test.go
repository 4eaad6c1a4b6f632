package policy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/domain"
	"github.com/MrSnakeDoc/sweep/internal/logger"
)

func basePolicy() domain.Policy {
	return domain.Policy{
		Labels:             []string{"tv"},
		MaxRatio:           2,
		DeadRetentionHours: 12,
		MaxAgeHours:        120,
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policy.yaml", `
labels: [Movies, TV]
excluded_trackers:
  - Private.org
max_ratio: 1.5
dry_run: true
`)

	p, err := LoadFile(path, basePolicy())
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if !reflect.DeepEqual(p.Labels, []string{"movies", "tv"}) {
		t.Errorf("Labels = %v", p.Labels)
	}
	if !reflect.DeepEqual(p.ExcludedTrackers, []string{"private.org"}) {
		t.Errorf("ExcludedTrackers = %v", p.ExcludedTrackers)
	}
	if p.MaxRatio != 1.5 || !p.DryRun {
		t.Errorf("MaxRatio = %v DryRun = %v", p.MaxRatio, p.DryRun)
	}
	// Absent keys keep the base values.
	if p.DeadRetentionHours != 12 || p.MaxAgeHours != 120 {
		t.Errorf("base thresholds lost: %+v", p)
	}
}

func TestLoadFileTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policy.toml", `
labels = ["anime"]
max_age_hours = 48.0
dead_retention_hours = 6.0
`)

	p, err := LoadFile(path, basePolicy())
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !reflect.DeepEqual(p.Labels, []string{"anime"}) || p.MaxAgeHours != 48 || p.DeadRetentionHours != 6 {
		t.Errorf("policy = %+v", p)
	}
	if p.MaxRatio != 2 {
		t.Errorf("MaxRatio = %v, want base 2", p.MaxRatio)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.yaml")},
		{"bad yaml", writeFile(t, dir, "bad.yaml", "labels: [unterminated")},
		{"bad toml", writeFile(t, dir, "bad.toml", "labels = ")},
		{"invalid threshold", writeFile(t, dir, "zero.yaml", "max_ratio: 0")},
		{"nan threshold yaml", writeFile(t, dir, "nan.yaml", "max_age_hours: .nan")},
		{"infinite threshold yaml", writeFile(t, dir, "inf.yaml", "max_ratio: .inf")},
		{"nan threshold toml", writeFile(t, dir, "nan.toml", "max_age_hours = nan")},
		{"unknown extension", writeFile(t, dir, "policy.json", "{}")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(tt.path, basePolicy()); err == nil {
				t.Error("LoadFile() error = nil, want error")
			}
		})
	}
}

func TestReloaderKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "policy.yaml", "max_ratio: 3")

	store := NewStore(basePolicy())
	r := NewReloader(path, basePolicy(), store, logger.NewNop())

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if store.Current().MaxRatio != 3 {
		t.Fatalf("MaxRatio = %v, want 3", store.Current().MaxRatio)
	}

	writeFile(t, dir, "policy.yaml", "max_ratio: -1")
	if err := r.Reload(); err == nil {
		t.Fatal("Reload() accepted an invalid policy")
	}
	if store.Current().MaxRatio != 3 {
		t.Errorf("MaxRatio = %v after failed reload, want 3", store.Current().MaxRatio)
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test")
	}

	dir := t.TempDir()
	path := writeFile(t, dir, "policy.yaml", "max_ratio: 2")

	store := NewStore(basePolicy())
	w := NewWatcher(NewReloader(path, basePolicy(), store, logger.NewNop()), logger.NewNop(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	writeFile(t, dir, "policy.yaml", "max_ratio: 4.5")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.Current().MaxRatio == 4.5 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("policy not reloaded, MaxRatio = %v", store.Current().MaxRatio)
}

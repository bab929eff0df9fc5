package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/mirror/pkg/mirror/types"
)

func setupTestManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "history"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := m.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	return m
}

func result(id string, started time.Time) types.PassResult {
	return types.PassResult{
		ID:          id,
		Session:     "session-1",
		Source:      "/src",
		Destination: "/dst",
		Started:     started,
		Elapsed:     1500 * time.Millisecond,
		Stats:       types.Stats{FilesCopied: 2, BytesCopied: 2048, LevelsVisited: 3},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New() error = nil, want error for empty directory")
	}

	m, err := New("/some/dir")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.Dir() != "/some/dir" {
		t.Errorf("Dir() = %q, want /some/dir", m.Dir())
	}
}

func TestManifest_Record(t *testing.T) {
	t.Parallel()
	m := setupTestManifest(t)

	start := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	if err := m.Record(result("aaaa-1111", start)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entry, err := m.Get("aaaa-1111")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !entry.Timestamp.Equal(start) {
		t.Errorf("Timestamp = %v, want %v", entry.Timestamp, start)
	}
	if entry.Stats.FilesCopied != 2 || entry.Stats.BytesCopied != 2048 {
		t.Errorf("Stats = %+v, want copied=2 bytes=2048", entry.Stats)
	}
	if entry.Elapsed != 1500*time.Millisecond {
		t.Errorf("Elapsed = %v, want 1.5s", entry.Elapsed)
	}
	if entry.Status() != StatusOK {
		t.Errorf("Status() = %q, want %q", entry.Status(), StatusOK)
	}

	files, err := os.ReadDir(m.Dir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, f := range files {
		if filepath.Ext(f.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", f.Name())
		}
	}
}

func TestManifest_LogAssignsID(t *testing.T) {
	t.Parallel()
	m := setupTestManifest(t)

	entry, err := m.Log(types.PassResult{Error: "boom"})
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if entry.ID == "" {
		t.Error("Log() did not assign an ID")
	}
	if entry.Timestamp.IsZero() {
		t.Error("Log() did not assign a timestamp")
	}
	if entry.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", entry.Status(), StatusFailed)
	}
}

func TestManifest_List(t *testing.T) {
	t.Parallel()

	t.Run("returns entries newest first", func(t *testing.T) {
		t.Parallel()
		m := setupTestManifest(t)

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, id := range []string{"second", "first", "third"} {
			offset := map[int]time.Duration{0: time.Minute, 1: 0, 2: 2 * time.Minute}[i]
			if err := m.Record(result(id, base.Add(offset))); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
		}

		entries, err := m.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("len(entries) = %v, want 3", len(entries))
		}
		want := []string{"third", "second", "first"}
		for i, e := range entries {
			if e.ID != want[i] {
				t.Errorf("entries[%d].ID = %q, want %q", i, e.ID, want[i])
			}
		}
	})

	t.Run("respects limit parameter", func(t *testing.T) {
		t.Parallel()
		m := setupTestManifest(t)

		base := time.Now()
		for i := 0; i < 5; i++ {
			if err := m.Record(result(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
		}

		entries, err := m.List(2)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("len(entries) = %v, want 2", len(entries))
		}
	})

	t.Run("returns empty slice for missing directory", func(t *testing.T) {
		t.Parallel()
		m, err := New(filepath.Join(t.TempDir(), "missing"))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		entries, err := m.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if entries == nil || len(entries) != 0 {
			t.Errorf("List() = %v, want empty slice", entries)
		}
	})

	t.Run("skips unparseable files", func(t *testing.T) {
		t.Parallel()
		m := setupTestManifest(t)

		if err := os.WriteFile(filepath.Join(m.Dir(), "junk.json"), []byte("{not json"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if err := m.Record(result("good", time.Now())); err != nil {
			t.Fatalf("Record() error = %v", err)
		}

		entries, err := m.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("len(entries) = %v, want 1", len(entries))
		}
	})
}

func TestManifest_Get(t *testing.T) {
	t.Parallel()
	m := setupTestManifest(t)

	now := time.Now()
	for _, id := range []string{"3f2a9c10-aaaa", "3f2b0000-bbbb", "9d00e1e1-cccc"} {
		if err := m.Record(result(id, now)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		id      string
		wantID  string
		wantErr error
	}{
		{name: "exact", id: "3f2a9c10-aaaa", wantID: "3f2a9c10-aaaa"},
		{name: "unique prefix", id: "9d", wantID: "9d00e1e1-cccc"},
		{name: "ambiguous prefix", id: "3f2", wantErr: ErrAmbiguousID},
		{name: "not found", id: "ffff", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := m.Get(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Get(%q) error = %v, want %v", tt.id, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get(%q) error = %v", tt.id, err)
			}
			if entry.ID != tt.wantID {
				t.Errorf("Get(%q).ID = %q, want %q", tt.id, entry.ID, tt.wantID)
			}
		})
	}

	if _, err := m.Get(""); err == nil {
		t.Error("Get(\"\") error = nil, want error")
	}
}

func TestManifest_Cleanup(t *testing.T) {
	t.Parallel()

	t.Run("removes entries older than retention days", func(t *testing.T) {
		t.Parallel()
		m := setupTestManifest(t)

		if err := m.Record(result("old", time.Now())); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		files, err := os.ReadDir(m.Dir())
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		oldTime := time.Now().AddDate(0, 0, -10)
		for _, f := range files {
			if err := os.Chtimes(filepath.Join(m.Dir(), f.Name()), oldTime, oldTime); err != nil {
				t.Fatalf("Chtimes() error = %v", err)
			}
		}
		if err := m.Record(result("fresh", time.Now())); err != nil {
			t.Fatalf("Record() error = %v", err)
		}

		removed, err := m.Cleanup(5)
		if err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if removed != 1 {
			t.Errorf("Cleanup() removed = %d, want 1", removed)
		}
		if _, err := m.Get("old"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(old) error = %v, want ErrNotFound", err)
		}
		if _, err := m.Get("fresh"); err != nil {
			t.Errorf("Get(fresh) error = %v", err)
		}
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		t.Parallel()
		m := setupTestManifest(t)
		if err := m.Record(result("kept", time.Now().AddDate(-1, 0, 0))); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		removed, err := m.Cleanup(0)
		if err != nil || removed != 0 {
			t.Errorf("Cleanup(0) = %d, %v, want 0, nil", removed, err)
		}
	})

	t.Run("handles missing directory", func(t *testing.T) {
		t.Parallel()
		m, err := New(filepath.Join(t.TempDir(), "missing"))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := m.Cleanup(7); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
	})
}

func TestManifest_ConcurrentRecords(t *testing.T) {
	t.Parallel()
	m := setupTestManifest(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Record(types.PassResult{Started: time.Now()}); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := m.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("len(entries) = %d, want 20", len(entries))
	}
}

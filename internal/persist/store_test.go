package persist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_RoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("init store: %v", err)
	}

	img := []byte{0x89, 0x50, 0x4e, 0x47, 1, 2, 3}
	st, err := store.NewInteraction(KindRequestPending, 42, 100, 7, "hello", [][]byte{img})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if st.ID == "" {
		t.Fatalf("no id generated")
	}
	if len(st.InputImagePaths) != 1 {
		t.Fatalf("want 1 input ref, got %d", len(st.InputImagePaths))
	}

	got, err := store.Load(st.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != st.ID || got.Kind != st.Kind || got.OriginalText != "hello" {
		t.Fatalf("fields mismatch: %+v", got)
	}
	if got.UserID != 42 || got.ChannelID != 100 || got.MessageID != 7 {
		t.Fatalf("provenance mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(st.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, st.CreatedAt)
	}
	if len(got.InputImagePaths) != 1 || got.InputImagePaths[0] != st.InputImagePaths[0] {
		t.Fatalf("input refs mismatch: %+v", got.InputImagePaths)
	}
}

func TestStore_SaveOverwritesFully(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	st, err := store.NewInteraction(KindRequestPending, 1, 2, 3, "first", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st.OriginalText = "second"
	st.AddOutput(OutputRecord{ImagePath: "output_images/x.png", Filename: "x.png", PromptUsed: "p", Timestamp: time.Now().UTC()})
	if err := store.Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(st.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.OriginalText != "second" || len(got.Outputs) != 1 || got.CurrentIndex != 0 {
		t.Fatalf("overwrite not applied: %+v", got)
	}
	if got.Kind != KindRequestPending {
		t.Fatalf("kind changed unexpectedly: %s", got.Kind)
	}
}

func TestStore_LoadUnknownID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	if _, err := store.Load("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStore_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	// Simulate a snapshot truncated mid-write.
	p := filepath.Join(dir, "states", "broken.json")
	if err := os.WriteFile(p, []byte(`{"interaction_id":"bro`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load("broken"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
}

func TestStore_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	st, err := store.NewInteraction(KindRequestPending, 1, 2, 3, "x", [][]byte{{1, 2, 3}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ref := st.InputImagePaths[0]
	if err := os.Remove(filepath.Join(dir, ref)); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	if _, err := store.ResolveArtifact(ref); !errors.Is(err, ErrMissing) {
		t.Fatalf("want ErrMissing, got %v", err)
	}
}

func TestStore_DeleteIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	st, err := store.NewInteraction(KindRequestPending, 1, 2, 3, "x", [][]byte{{1}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ref := st.InputImagePaths[0]

	if err := store.Delete(st.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ref)); !os.IsNotExist(err) {
		t.Fatalf("artifact not removed")
	}
	if _, err := store.Load(st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("snapshot not removed")
	}
	// Second delete must not fail.
	if err := store.Delete(st.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestStore_CleanupByAge(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	now := time.Now().UTC()
	mk := func(age time.Duration, withArtifact bool) *InteractionState {
		st, err := store.NewInteraction(KindResultsBrowser, 1, 2, 3, "x", nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if withArtifact {
			ref, err := store.SaveInputImage([]byte{1, 2}, st.ID, 0)
			if err != nil {
				t.Fatalf("save image: %v", err)
			}
			st.InputImagePaths = append(st.InputImagePaths, ref)
		}
		st.CreatedAt = now.Add(-age)
		if err := store.Save(st); err != nil {
			t.Fatalf("save: %v", err)
		}
		return st
	}

	old := mk(40*24*time.Hour, true)
	mid := mk(20*24*time.Hour, false)
	fresh := mk(24*time.Hour, false)

	removed, err := store.Cleanup(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("want 1 removed, got %d", removed)
	}
	if _, err := store.Load(old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old record survived")
	}
	if _, err := os.Stat(filepath.Join(dir, old.InputImagePaths[0])); !os.IsNotExist(err) {
		t.Fatalf("old artifact survived")
	}
	if _, err := store.Load(mid.ID); err != nil {
		t.Fatalf("mid record removed: %v", err)
	}
	if _, err := store.Load(fresh.ID); err != nil {
		t.Fatalf("fresh record removed: %v", err)
	}
}

func TestStore_RestartScenario(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	img := []byte{0xde, 0xad, 0xbe, 0xef}
	st, err := store.NewInteraction(KindRequestPending, 9, 10, 11, "hello", [][]byte{img})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// New store instance over the same directory simulates a restart.
	store2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	got, err := store2.Load(st.ID)
	if err != nil {
		t.Fatalf("load after restart: %v", err)
	}
	if got.OriginalText != "hello" || got.UserID != 9 {
		t.Fatalf("fields lost across restart: %+v", got)
	}
	data, err := store2.ResolveArtifact(got.InputImagePaths[0])
	if err != nil {
		t.Fatalf("resolve after restart: %v", err)
	}
	if string(data) != string(img) {
		t.Fatalf("artifact bytes changed: %v", data)
	}
}

func TestStore_LegacySinkMirrorsArtifacts(t *testing.T) {
	legacy := t.TempDir()
	sink, err := NewLegacyDirSink(legacy)
	if err != nil {
		t.Fatalf("init sink: %v", err)
	}
	store, err := NewStore(t.TempDir(), sink)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	st, err := store.NewInteraction(KindRequestPending, 1, 2, 3, "x", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ref, err := store.SaveOutputImage([]byte{7, 7}, st.ID, "sticker")
	if err != nil {
		t.Fatalf("save output: %v", err)
	}
	mirrored := filepath.Join(legacy, filepath.Base(ref))
	if _, err := os.Stat(mirrored); err != nil {
		t.Fatalf("legacy mirror missing: %v", err)
	}
}

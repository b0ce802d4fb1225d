package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	statesDirName  = "states"
	inputDirName   = "input_images"
	outputDirName  = "output_images"
	artifactTSFmt  = "20060102_150405"
	snapshotSuffix = ".json"
)

// Store owns the on-disk tree for interaction snapshots and their
// artifacts. A single process owns the root at a time; within the
// process all multi-file mutations run under the mutex.
type Store struct {
	root  string
	mu    sync.Mutex
	sinks []ArtifactSink
}

func NewStore(root string, sinks ...ArtifactSink) (*Store, error) {
	for _, d := range []string{statesDirName, inputDirName, outputDirName} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, storageErr("init", err)
		}
	}
	return &Store{root: root, sinks: sinks}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) statePath(id string) string {
	return filepath.Join(s.root, statesDirName, id+snapshotSuffix)
}

// NewInteraction generates a fresh identifier, persists the input images
// and writes the initial snapshot.
func (s *Store) NewInteraction(kind Kind, userID, channelID int64, messageID int, text string, inputImages [][]byte) (*InteractionState, error) {
	st := &InteractionState{
		ID:           uuid.NewString(),
		Kind:         kind,
		CreatedAt:    time.Now().UTC(),
		OriginalText: text,
		UserID:       userID,
		ChannelID:    channelID,
		MessageID:    messageID,
	}
	for i, img := range inputImages {
		ref, err := s.SaveInputImage(img, st.ID, i)
		if err != nil {
			return nil, err
		}
		st.InputImagePaths = append(st.InputImagePaths, ref)
	}
	if err := s.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Save overwrites the snapshot for st.ID with the full current state.
// The write goes to a temp file first and is renamed into place so a
// crashed reader never observes a half-written snapshot.
func (s *Store) Save(st *InteractionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Join(s.root, statesDirName)
	tmp, err := os.CreateTemp(dir, st.ID+".tmp-*")
	if err != nil {
		return storageErr("save", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return storageErr("save", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return storageErr("save", err)
	}
	if err := os.Rename(tmp.Name(), s.statePath(st.ID)); err != nil {
		_ = os.Remove(tmp.Name())
		return storageErr("save", err)
	}
	return nil
}

// Load reads and decodes one snapshot. Artifact bytes are not loaded;
// the caller resolves references lazily via ResolveArtifact.
func (s *Store) Load(id string) (*InteractionState, error) {
	data, err := os.ReadFile(s.statePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, storageErr("load", err)
	}
	var st InteractionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	if st.ID == "" {
		st.ID = id
	}
	return &st, nil
}

// ResolveArtifact loads one referenced file. Absent files report
// ErrMissing so the caller can substitute a placeholder.
func (s *Store) ResolveArtifact(ref string) ([]byte, error) {
	if ref == "" || strings.Contains(ref, "..") {
		return nil, ErrMissing
	}
	data, err := os.ReadFile(filepath.Join(s.root, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissing
		}
		return nil, storageErr("resolve", err)
	}
	return data, nil
}

// SaveInputImage writes one user-supplied image and returns its
// reference relative to the store root.
func (s *Store) SaveInputImage(data []byte, id string, index int) (string, error) {
	name := fmt.Sprintf("input_%s_%d_%s.png", id, index, time.Now().UTC().Format(artifactTSFmt))
	return s.writeArtifact(filepath.Join(inputDirName, name), data)
}

// SaveOutputImage writes one generated image and returns its reference
// relative to the store root.
func (s *Store) SaveOutputImage(data []byte, id, label string) (string, error) {
	name := fmt.Sprintf("output_%s_%s_%s.png", id, sanitizeLabel(label), time.Now().UTC().Format(artifactTSFmt))
	return s.writeArtifact(filepath.Join(outputDirName, name), data)
}

func (s *Store) writeArtifact(rel string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(filepath.Join(s.root, rel), data, 0o644); err != nil {
		return "", storageErr("write artifact", err)
	}
	for _, sink := range s.sinks {
		if err := sink.Put(rel, data); err != nil {
			log.Printf("artifact sink failed for %s: %v", rel, err)
		}
	}
	return filepath.ToSlash(rel), nil
}

// RemoveArtifact deletes one referenced file, best effort.
func (s *Store) RemoveArtifact(ref string) {
	if ref == "" || strings.Contains(ref, "..") {
		return
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(ref))); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove artifact %s: %v", ref, err)
	}
}

// Delete removes the snapshot and every artifact it references.
// Already-gone files are not an error; deleting twice is a no-op.
func (s *Store) Delete(id string) error {
	st, err := s.Load(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		// Corrupt snapshots still get their file removed below.
		log.Printf("delete %s: snapshot unreadable: %v", id, err)
	}
	if st != nil {
		for _, ref := range st.InputImagePaths {
			s.RemoveArtifact(ref)
		}
		for _, out := range st.Outputs {
			s.RemoveArtifact(out.ImagePath)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.statePath(id)); err != nil && !os.IsNotExist(err) {
		return storageErr("delete", err)
	}
	return nil
}

// List returns the ids of all stored snapshots.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, statesDirName))
	if err != nil {
		return nil, storageErr("list", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotSuffix))
	}
	return ids, nil
}

// Cleanup deletes every snapshot older than maxAge together with its
// artifacts and returns how many were removed. Age is measured against
// created_at with the cutoff fixed at sweep start, so records created
// while the sweep runs are never eligible. Per-file failures are logged
// and the sweep continues.
func (s *Store) Cleanup(maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	ids, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		st, err := s.Load(id)
		if err != nil {
			log.Printf("cleanup: skipping %s: %v", id, err)
			continue
		}
		if !st.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(id); err != nil {
			log.Printf("cleanup: failed to delete %s: %v", id, err)
			continue
		}
		removed++
	}
	return removed, nil
}

func sanitizeLabel(label string) string {
	if label == "" {
		return "result"
	}
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

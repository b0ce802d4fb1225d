package persist

import (
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactSink receives every artifact written through the store.
// The store's own directory tree is always written first; sinks are
// additional destinations (e.g. a legacy flat directory kept for
// older tooling that scans generated images).
type ArtifactSink interface {
	Put(relPath string, data []byte) error
}

// LegacyDirSink mirrors output artifacts into a single flat directory,
// keeping only the base filename.
type LegacyDirSink struct {
	dir string
}

func NewLegacyDirSink(dir string) (*LegacyDirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure legacy dir: %w", err)
	}
	return &LegacyDirSink{dir: dir}, nil
}

func (s *LegacyDirSink) Put(relPath string, data []byte) error {
	p := filepath.Join(s.dir, filepath.Base(relPath))
	return os.WriteFile(p, data, 0o644)
}

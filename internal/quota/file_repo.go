package quota

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ledgerFile is the on-disk shape of the ledger snapshot.
type ledgerFile struct {
	Users       map[int64]Entry `json:"users"`
	LastUpdated string          `json:"last_updated,omitempty"`
}

type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) Load() (map[int64]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)
	var lf ledgerFile
	dec := json.NewDecoder(f)
	if err := dec.Decode(&lf); err != nil {
		if err == io.EOF {
			return map[int64]Entry{}, nil
		}
		// empty or malformed -> start fresh
		return map[int64]Entry{}, nil
	}
	if lf.Users == nil {
		lf.Users = map[int64]Entry{}
	}
	return lf.Users, nil
}

func (r *FileRepository) Save(users map[int64]Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(ledgerFile{Users: users, LastUpdated: time.Now().UTC().Format(time.RFC3339)})
}

package sessionstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const fileName = "sessions.json"

// FileStore keeps deadlines in a single JSON file, written atomically via a
// temp file so a crash mid-write never leaves a torn deadline behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the store directory if needed and returns a store
// backed by dir/sessions.json.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create session store dir")
	}
	return &FileStore{path: filepath.Join(dir, fileName)}, nil
}

func (s *FileStore) Get(purpose string) (Deadline, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadlines, err := s.load()
	if err != nil {
		return Deadline{}, false, err
	}
	expiresAt, ok := deadlines[purpose]
	if !ok {
		return Deadline{}, false, nil
	}
	return Deadline{Purpose: purpose, ExpiresAt: expiresAt}, true, nil
}

func (s *FileStore) Put(d Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadlines, err := s.load()
	if err != nil {
		return err
	}
	deadlines[d.Purpose] = d.ExpiresAt
	return s.save(deadlines)
}

func (s *FileStore) Delete(purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadlines, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := deadlines[purpose]; !ok {
		return nil
	}
	delete(deadlines, purpose)
	return s.save(deadlines)
}

func (s *FileStore) load() (map[string]time.Time, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]time.Time), nil
		}
		return nil, errors.Wrap(err, "read session store")
	}
	if len(payload) == 0 {
		return make(map[string]time.Time), nil
	}

	var deadlines map[string]time.Time
	if err := json.Unmarshal(payload, &deadlines); err != nil {
		return nil, errors.Wrap(err, "decode session store")
	}
	if deadlines == nil {
		deadlines = make(map[string]time.Time)
	}
	return deadlines, nil
}

func (s *FileStore) save(deadlines map[string]time.Time) error {
	payload, err := json.MarshalIndent(deadlines, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session store")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write session store temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist session store")
	}
	return nil
}

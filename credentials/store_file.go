package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FileStore persists credentials as a single JSON document so they survive a
// process restart. Writes go to a temp file that is renamed over the target,
// so the file on disk is always either the old or the new record.
//
// The in-process copy is authoritative for readers in this process; a failed
// disk write is logged and does not make Load return stale data.
type FileStore struct {
	path   string
	logger zerolog.Logger

	mu     sync.RWMutex
	loaded bool
	record *Record
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by the file at path. The file is read
// lazily on first use.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: log.With().Str("component", "credentials").Str("path", path).Logger(),
	}
}

var errCorruptFile = errors.New("corrupt credential file")

func (s *FileStore) Save(pair Pair, identity *Identity) {
	if !pair.Complete() {
		s.logger.Warn().Msg("refusing to save an incomplete credential pair")
		return
	}
	record := &Record{Pair: pair, Identity: cloneIdentity(identity), SavedAt: NowTimeFunc()}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	s.record = record
	if err := s.write(record); err != nil {
		s.logger.Err(err).Msg("failed to persist credentials")
	}
}

func (s *FileStore) Load() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.loadLocked()
	if record == nil {
		return Record{}, false
	}
	return Record{Pair: record.Pair, Identity: cloneIdentity(record.Identity), SavedAt: record.SavedAt}, true
}

func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	s.record = nil
	s.removeFile()
}

func (s *FileStore) CompareAndSave(expected string, pair Pair, identity *Identity) bool {
	if expected == "" || !pair.Complete() {
		return false
	}
	record := &Record{Pair: pair, Identity: cloneIdentity(identity), SavedAt: NowTimeFunc()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if refreshOf(s.loadLocked()) != expected {
		return false
	}
	s.loaded = true
	s.record = record
	if err := s.write(record); err != nil {
		s.logger.Err(err).Msg("failed to persist credentials")
	}
	return true
}

func (s *FileStore) CompareAndClear(expected string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if refreshOf(s.loadLocked()) != expected {
		return false
	}
	s.loaded = true
	s.record = nil
	s.removeFile()
	return true
}

// loadLocked reads the file on first use. Only a corrupt file is removed; an
// unreadable one is left in place and read again on the next call.
func (s *FileStore) loadLocked() *Record {
	if s.loaded {
		return s.record
	}

	record, err := s.read()
	switch {
	case errors.Is(err, errCorruptFile):
		s.logger.Err(err).Msg("discarding corrupt credential file")
		s.removeFile()
	case err != nil:
		s.logger.Err(err).Msg("credential file is unreadable")
		return nil
	}
	s.record = record
	s.loaded = true
	return s.record
}

func (s *FileStore) read() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", errCorruptFile, err)
	}
	if !record.Pair.Complete() {
		return nil, fmt.Errorf("%w: incomplete pair", errCorruptFile)
	}
	return &record, nil
}

func (s *FileStore) write(record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	// CreateTemp opens the file with mode 0600.
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

func (s *FileStore) removeFile() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Err(err).Msg("failed to remove credential file")
	}
}

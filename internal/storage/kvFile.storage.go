package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const DEFAULT_KV_QUOTA_BYTES = 5 * 1024 * 1024

// KVFile is a small synchronous key-value file. Values are JSON documents kept as strings;
// the file is rewritten whole on every change through a temp file and rename.
type KVFile struct {
	path  string
	quota int64

	mu     sync.Mutex
	data   map[string]string
	loaded bool
	size   int64
}

func NewKVFile(path string, quota int64) *KVFile {
	if quota <= 0 {
		quota = DEFAULT_KV_QUOTA_BYTES
	}
	return &KVFile{path: path, quota: quota}
}

func (s *KVFile) Path() string {
	return s.path
}

func (s *KVFile) Quota() int64 {
	return s.quota
}

// Get returns the raw value for key. A value that is not valid JSON is removed and reported
// as ErrCorrupt.
func (s *KVFile) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return "", false, err
	}

	value, ok := s.data[key]
	if !ok {
		return "", false, nil
	}
	if !json.Valid([]byte(value)) {
		delete(s.data, key)
		if err := s.save(s.data); err != nil {
			return "", false, err
		}
		return "", false, fmt.Errorf("%w: key %s in %s", ErrCorrupt, key, s.path)
	}
	return value, true, nil
}

// Set stores value under key. Values that would push the file past its quota are refused
// with ErrCapacity and the previous state is kept.
func (s *KVFile) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	next := make(map[string]string, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	next[key] = value

	return s.save(next)
}

func (s *KVFile) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	if _, ok := s.data[key]; !ok {
		return nil
	}

	next := make(map[string]string, len(s.data))
	for k, v := range s.data {
		if k != key {
			next[k] = v
		}
	}
	return s.save(next)
}

// Size is the encoded size of the file in bytes.
func (s *KVFile) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return 0, err
	}
	return s.size, nil
}

func (s *KVFile) load() error {
	if s.loaded {
		return nil
	}

	s.data = make(map[string]string)
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		// Unreadable file: start over rather than refusing every later write.
		s.data = make(map[string]string)
		s.loaded = true
		if removeErr := os.Remove(s.path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return fmt.Errorf("remove corrupt %s: %w", s.path, removeErr)
		}
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}

	s.size = int64(len(raw))
	s.loaded = true
	return nil
}

func (s *KVFile) save(next map[string]string) error {
	encoded, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if int64(len(encoded)) > s.quota {
		return fmt.Errorf("%w: %d bytes exceeds quota of %d", ErrCapacity, len(encoded), s.quota)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(s.path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.data = next
	s.size = int64(len(encoded))
	return nil
}

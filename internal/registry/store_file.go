package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/redtooth/internal/radio"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("registry closed")

type document struct {
	Devices []Entry `yaml:"devices"`
}

// FileStore is a Registry persisted as a YAML document. An empty path keeps the
// registry in memory only.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[uint64]*Entry
	session string
	now     func() time.Time
	logger  *logrus.Logger
	closed  bool
}

// Option configures a FileStore
type Option func(*FileStore)

// WithSession tags every recorded interaction with a session identifier
func WithSession(id string) Option {
	return func(s *FileStore) { s.session = id }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// Open loads the registry at path. A missing file yields an empty registry.
func Open(path string, logger *logrus.Logger, opts ...Option) (*FileStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	s := &FileStore{
		path:    path,
		entries: make(map[uint64]*Entry),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if path == "" {
		logger.Debug("Using in-memory device registry")
		return s, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.WithField("path", path).Info("Registry file not found, starting empty")
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing registry file: %w", err)
	}
	for i := range doc.Devices {
		e := doc.Devices[i]
		s.entries[e.Address] = &e
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"devices": len(s.entries),
	}).Info("Registry loaded")
	return s, nil
}

// NewMemory returns an in-memory registry
func NewMemory(logger *logrus.Logger, opts ...Option) *FileStore {
	s, _ := Open("", logger, opts...)
	return s
}

// RecordInteraction implements Registry. An empty name keeps the previously known one.
func (s *FileStore) RecordInteraction(address uint64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	now := s.now()
	e, ok := s.entries[address]
	if !ok {
		e = &Entry{Address: address, FirstSeen: now}
		s.entries[address] = e
	}
	if name != "" {
		e.Name = name
	}
	e.LastSeen = now
	e.ConnectionCount++
	if s.session != "" {
		e.LastSession = s.session
	}

	s.logger.WithFields(logrus.Fields{
		"address": radio.FormatAddress(address),
		"name":    e.Name,
		"count":   e.ConnectionCount,
	}).Info("Device interaction recorded")

	return s.flushLocked()
}

// History implements Registry
func (s *FileStore) History(address uint64) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Entry{}, false, ErrClosed
	}
	e, ok := s.entries[address]
	if !ok {
		return Entry{}, false, nil
	}
	return *e, true, nil
}

// All implements Registry
func (s *FileStore) All() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.sortedLocked(), nil
}

// Cleanup implements Registry
func (s *FileStore) Cleanup(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for addr, e := range s.entries {
		if e.LastSeen.Before(cutoff) {
			delete(s.entries, addr)
			removed++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"removed":    removed,
		"older_than": olderThan,
	}).Info("Registry cleanup completed")

	if removed == 0 {
		return 0, nil
	}
	return removed, s.flushLocked()
}

// Close implements Registry
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *FileStore) sortedLocked() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].Address < out[j].Address
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// flushLocked replaces the file atomically via a temp file and rename.
func (s *FileStore) flushLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(document{Devices: s.sortedLocked()})
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing registry file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}

// Package store persists scraped readings on disk so uploads survive
// connectivity gaps between the device and the Nightscout server.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mrcode/nightscout-bridge/internal/models"
)

// retention bounds how far back records are kept; anything older is pruned
// on save.
const retention = 7 * 24 * time.Hour

// Record is one reading and its sync state.
type Record struct {
	Reading *models.GlucoseReading `msgpack:"reading"`
	Synced  bool                   `msgpack:"synced"`
}

// Store is a msgpack-backed reading log. All methods are safe for concurrent
// use; every mutation is written through to disk.
type Store struct {
	mu      sync.Mutex
	path    string
	now     func() time.Time
	records []Record
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used by retention pruning and Recent.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the store at path, creating parent directories as needed. A
// missing file yields an empty store.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store: %w", err)
	}
	if err := msgpack.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("decoding store: %w", err)
	}
	return s, nil
}

// Add appends a reading as unsynced and persists.
func (s *Store) Add(r *models.GlucoseReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, Record{Reading: r})
	return s.save()
}

// Pending returns the readings not yet uploaded, oldest first.
func (s *Store) Pending() []*models.GlucoseReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.GlucoseReading
	for _, rec := range s.records {
		if !rec.Synced {
			out = append(out, rec.Reading)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out
}

// MarkSynced flags the reading captured at the given instant as uploaded and
// persists.
func (s *Store) MarkSynced(capturedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].Reading.CapturedAt.Equal(capturedAt) {
			s.records[i].Synced = true
		}
	}
	return s.save()
}

// Latest returns the most recent reading, or nil when the store is empty.
func (s *Store) Latest() *models.GlucoseReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.GlucoseReading
	for _, rec := range s.records {
		if latest == nil || rec.Reading.CapturedAt.After(latest.CapturedAt) {
			latest = rec.Reading
		}
	}
	return latest
}

// Recent returns all readings captured within d of now, oldest first.
func (s *Store) Recent(d time.Duration) []*models.GlucoseReading {
	cutoff := s.now().Add(-d)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.GlucoseReading
	for _, rec := range s.records {
		if rec.Reading.CapturedAt.After(cutoff) {
			out = append(out, rec.Reading)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// save prunes expired records and writes the file. Caller holds s.mu.
func (s *Store) save() error {
	cutoff := s.now().Add(-retention)
	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.Reading.CapturedAt.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	s.records = kept

	data, err := msgpack.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing store: %w", err)
	}
	return nil
}

// Package store implements the authoritative in-memory keyspace: a
// single RWMutex-guarded map, lazy and swept expiry, atomic
// read-modify-write operations, and the AOL/snapshot bridge used for
// crash recovery and background persistence.
package store

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"fedis/internal/aol"
	"fedis/internal/protocol"
	"fedis/internal/snapshot"
)

// Entry is one live keyspace row.
type Entry struct {
	Value       []byte
	ExpiresAtMS int64 // -1 means no expiry
}

func (e *Entry) expired(nowMS int64) bool {
	return e.ExpiresAtMS >= 0 && e.ExpiresAtMS <= nowMS
}

// Store is the sole authority over the in-memory map. All exported
// mutating methods perform the map update first and the AOL append
// second, so a mutation blocked by its precondition is never logged;
// the change is visible to readers before its record is appended, and
// an append failure still leaves the mutation visible (see DESIGN.md,
// Open Question: AOL append failure visibility).
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry

	aol *aol.Writer
	log logrus.FieldLogger

	sweepStop chan struct{}
	sweepWG   sync.WaitGroup

	rewriteInProgress atomic.Bool
	saveInProgress    atomic.Bool

	bgSaveCount    atomic.Int64
	bgSaveFailures atomic.Int64
	lastSaveUnix   atomic.Int64

	snapshotPath string
}

// New constructs an empty store. Callers load prior state via
// LoadSnapshot/ReplayAOL before serving traffic.
func New(w *aol.Writer, snapshotPath string, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		data:         make(map[string]*Entry),
		aol:          w,
		log:          log,
		snapshotPath: snapshotPath,
	}
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}

// LoadSnapshot populates the map from a previously loaded snapshot
// file. Must be called before StartSweeper/ReplayAOL and before any
// connection is accepted.
func (s *Store) LoadSnapshot(entries []snapshot.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.data[string(e.Key)] = &Entry{Value: e.Value, ExpiresAtMS: e.ExpiresAtMS}
	}
}

// ReplayAOL applies the AOL at path on top of whatever the snapshot
// already loaded, in order, without re-appending (the store itself
// is the aol.RecordHandler).
func (s *Store) ReplayAOL(path string) error {
	return aol.Replay(path, s)
}

// --- aol.RecordHandler ---

func (s *Store) ApplySet(key, value []byte, expiresAtMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = &Entry{Value: value, ExpiresAtMS: expiresAtMS}
	return nil
}

func (s *Store) ApplyDel(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *Store) ApplyExpire(key []byte, expiresAtMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data[string(key)]; ok {
		e.ExpiresAtMS = expiresAtMS
	}
	return nil
}

func (s *Store) ApplyPersist(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data[string(key)]; ok {
		e.ExpiresAtMS = -1
	}
	return nil
}

// appendRecord durably logs a mutation already applied to the map.
// On failure it returns a wrapped error carrying the "ERR internal:"
// prefix the dispatcher surfaces verbatim; the caller's map mutation
// is not reverted.
func (s *Store) appendRecord(payload []byte) error {
	if s.aol == nil {
		return nil
	}
	if err := s.aol.Append(payload); err != nil {
		s.log.WithError(err).Error("store: aol append failed")
		return protocol.NewErr("internal: %v", err)
	}
	return nil
}

// StartSweeper launches the periodic expiry sweep at the given cadence.
func (s *Store) StartSweeper(interval time.Duration) {
	s.sweepStop = make(chan struct{})
	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.CleanupExpired()
			case <-s.sweepStop:
				return
			}
		}
	}()
}

// Close stops the sweeper goroutine. The AOL writer is closed by its
// own owner, not by Store.
func (s *Store) Close() {
	if s.sweepStop != nil {
		close(s.sweepStop)
		s.sweepWG.Wait()
	}
}

// CleanupExpired retains only entries with no expiry or an expiry
// strictly in the future.
func (s *Store) CleanupExpired() {
	now := nowMS()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
		}
	}
}

// DBSize returns the count of live keys (expired entries still
// present but unswept are excluded).
func (s *Store) DBSize() int {
	now := nowMS()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// ExpiringKeyCount returns the count of live keys that carry an
// expiry, for the metrics endpoint.
func (s *Store) ExpiringKeyCount() int {
	now := nowMS()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.data {
		if !e.expired(now) && e.ExpiresAtMS >= 0 {
			n++
		}
	}
	return n
}

// ApproxMemoryBytes sums MemoryUsage across every live key.
func (s *Store) ApproxMemoryBytes() int64 {
	now := nowMS()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for k, e := range s.data {
		if !e.expired(now) {
			total += int64(len(k) + len(e.Value) + 48)
		}
	}
	return total
}

// MemoryUsage returns an approximate byte count for key, or (0, false)
// if absent.
func (s *Store) MemoryUsage(key string) (int, bool) {
	now := nowMS()
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || e.expired(now) {
		return 0, false
	}
	return len(key) + len(e.Value) + 48, true
}

// ObjectEncoding always reports "raw": every value is an opaque byte
// string, so there is no alternate compact encoding to distinguish.
func (s *Store) ObjectEncoding(key string) (string, bool) {
	now := nowMS()
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || e.expired(now) {
		return "", false
	}
	return "raw", true
}

// snapshotEntriesLocked must be called with s.mu held (read or write).
// It copies every entry as-is, sorted by key, and evicts nothing;
// snapshotForBackground removes expired entries before calling it.
func (s *Store) snapshotEntriesLocked() []snapshot.Entry {
	entries := make([]snapshot.Entry, 0, len(s.data))
	for k, e := range s.data {
		entries = append(entries, snapshot.Entry{
			Key:         []byte(k),
			Value:       e.Value,
			ExpiresAtMS: e.ExpiresAtMS,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].Key) < string(entries[j].Key)
	})
	return entries
}

// snapshotForBackground takes a brief write lock, evicts expired keys,
// and returns a stable-sorted copy of the live keyspace for BGSAVE or
// BGREWRITEAOF to consume without holding the lock during file I/O.
func (s *Store) snapshotForBackground() []snapshot.Entry {
	now := nowMS()
	s.mu.Lock()
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
		}
	}
	entries := s.snapshotEntriesLocked()
	s.mu.Unlock()
	return entries
}

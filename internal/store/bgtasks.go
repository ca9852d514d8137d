package store

import (
	"fedis/internal/aol"
	"fedis/internal/snapshot"
)

// BGSaveStats is a point-in-time view of background-save counters.
type BGSaveStats struct {
	InProgress   bool
	SaveCount    int64
	SaveFailures int64
	LastSaveUnix int64
}

// TryBGRewriteAOF starts an AOL rewrite in the background if one is
// not already running, returning false if it declined to start.
// Completion clears the in-progress flag; success/failure counters
// live on the AOL writer itself (see aol.Writer.Stats).
func (s *Store) TryBGRewriteAOF() bool {
	if !s.rewriteInProgress.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer s.rewriteInProgress.Store(false)
		if s.aol == nil {
			return
		}
		entries := s.snapshotForBackground()
		aolEntries := make([]aol.Entry, len(entries))
		for i, e := range entries {
			aolEntries[i] = aol.Entry{Key: e.Key, Value: e.Value, ExpiresAtMS: e.ExpiresAtMS}
		}
		if err := s.aol.Rewrite(aolEntries); err != nil {
			s.log.WithError(err).Error("store: background AOL rewrite failed")
		}
	}()
	return true
}

// RewriteInProgress reports whether a BGREWRITEAOF is currently running.
func (s *Store) RewriteInProgress() bool {
	return s.rewriteInProgress.Load()
}

// TryBGSave starts a snapshot write in the background if one is not
// already running, returning false if it declined to start.
func (s *Store) TryBGSave() bool {
	if s.snapshotPath == "" {
		return false
	}
	if !s.saveInProgress.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer s.saveInProgress.Store(false)
		entries := s.snapshotForBackground()
		if err := snapshot.Save(s.snapshotPath, entries); err != nil {
			s.bgSaveFailures.Add(1)
			s.log.WithError(err).Error("store: background save failed")
			return
		}
		s.bgSaveCount.Add(1)
		s.lastSaveUnix.Store(nowMS() / 1000)
	}()
	return true
}

// SaveStats returns a snapshot of BGSAVE counters.
func (s *Store) SaveStats() BGSaveStats {
	return BGSaveStats{
		InProgress:   s.saveInProgress.Load(),
		SaveCount:    s.bgSaveCount.Load(),
		SaveFailures: s.bgSaveFailures.Load(),
		LastSaveUnix: s.lastSaveUnix.Load(),
	}
}

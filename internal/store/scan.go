package store

import "sort"

// Keys returns every live key matching pattern, sorted by key bytes.
func (s *Store) Keys(pattern string) []string {
	now := nowMS()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if !e.expired(now) && globMatch(pattern, k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Scan returns the next cursor and a bounded slice of matching live
// keys. The live key set is snapshotted under the write lock (also
// evicting expired entries) and sorted after the lock is released, so
// the call is immune to concurrent eviction; cursor 0 bookends an
// iteration.
func (s *Store) Scan(cursor uint64, pattern string, count int) (uint64, []string) {
	if count < 1 {
		count = 1
	}

	now := nowMS()
	s.mu.Lock()
	keys := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
			continue
		}
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Strings(keys)

	start := int(cursor)
	if start > len(keys) {
		start = len(keys)
	}
	end := start + count
	if end > len(keys) {
		end = len(keys)
	}

	var page []string
	for _, k := range keys[start:end] {
		if globMatch(pattern, k) {
			page = append(page, k)
		}
	}

	nextCursor := uint64(end)
	if end >= len(keys) {
		nextCursor = 0
	}
	return nextCursor, page
}

// globMatch reports whether s matches pattern, where '*' matches zero
// or more bytes and '?' matches exactly one byte; all other bytes
// match literally. Matching is byte-wise with no normalization.
func globMatch(pattern, s string) bool {
	return globMatchBytes([]byte(pattern), []byte(s))
}

func globMatchBytes(pattern, s []byte) bool {
	var pIdx, sIdx int
	var starIdx = -1
	var matchIdx int

	for sIdx < len(s) {
		if pIdx < len(pattern) && (pattern[pIdx] == '?' || pattern[pIdx] == s[sIdx]) {
			pIdx++
			sIdx++
		} else if pIdx < len(pattern) && pattern[pIdx] == '*' {
			starIdx = pIdx
			matchIdx = sIdx
			pIdx++
		} else if starIdx != -1 {
			pIdx = starIdx + 1
			matchIdx++
			sIdx = matchIdx
		} else {
			return false
		}
	}

	for pIdx < len(pattern) && pattern[pIdx] == '*' {
		pIdx++
	}

	return pIdx == len(pattern)
}

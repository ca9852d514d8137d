package store

import "fedis/internal/aol"

// Expire sets key's expiry to an absolute Unix-ms deadline. Returns
// true iff the key existed and was not already expired.
func (s *Store) Expire(key string, expiresAtMS int64) (bool, error) {
	now := nowMS()
	s.mu.Lock()
	e, ok := s.data[key]
	if !ok || e.expired(now) {
		s.mu.Unlock()
		return false, nil
	}
	e.ExpiresAtMS = expiresAtMS
	s.mu.Unlock()

	if err := s.appendRecord(aol.EncodeExpire([]byte(key), expiresAtMS)); err != nil {
		return true, err
	}
	return true, nil
}

// Persist clears key's expiry. Returns true iff the key existed with
// an expiry that was actually cleared.
func (s *Store) Persist(key string) (bool, error) {
	now := nowMS()
	s.mu.Lock()
	e, ok := s.data[key]
	if !ok || e.expired(now) || e.ExpiresAtMS < 0 {
		s.mu.Unlock()
		return false, nil
	}
	e.ExpiresAtMS = -1
	s.mu.Unlock()

	if err := s.appendRecord(aol.EncodePersist([]byte(key))); err != nil {
		return true, err
	}
	return true, nil
}

// TTL returns the remaining seconds until expiry, -1 if the key has
// no expiry, or -2 if it is missing or expired.
func (s *Store) TTL(key string) int64 {
	pttl := s.PTTL(key)
	switch pttl {
	case -1, -2:
		return pttl
	default:
		// round up so a key with <1s left still reports 1, never 0
		return (pttl + 999) / 1000
	}
}

// PTTL returns the remaining milliseconds until expiry, -1 if the key
// has no expiry, or -2 if it is missing or expired.
func (s *Store) PTTL(key string) int64 {
	now := nowMS()
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || e.expired(now) {
		return -2
	}
	if e.ExpiresAtMS < 0 {
		return -1
	}
	return e.ExpiresAtMS - now
}

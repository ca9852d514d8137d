package store

import "fedis/internal/aol"

// SetCond selects the existence precondition for Set.
type SetCond int

const (
	CondNone SetCond = iota
	CondNX           // only if key absent
	CondXX           // only if key present
)

// ExpireMode selects how GetEx adjusts a key's expiry.
type ExpireMode int

const (
	ExpireNone ExpireMode = iota
	ExpireEX
	ExpirePX
	ExpirePersist
)

// Get returns the value for key, or (nil, false) if absent or expired.
// Lazy eviction takes the read-lock fast path and only escalates to a
// write lock when an expired entry is actually found (see DESIGN.md,
// Open Question: GET lazy-eviction locking).
func (s *Store) Get(key string) ([]byte, bool) {
	now := nowMS()
	s.mu.RLock()
	e, ok := s.data[key]
	if !ok {
		s.mu.RUnlock()
		return nil, false
	}
	if !e.expired(now) {
		v := e.Value
		s.mu.RUnlock()
		return v, true
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data[key]; ok && e.expired(nowMS()) {
		delete(s.data, key)
	}
	return nil, false
}

// Set writes key=value under cond, clearing any existing expiry unless
// expiresAtMS is non-negative. Returns true iff the write happened.
func (s *Store) Set(key string, value []byte, expiresAtMS int64, cond SetCond) (bool, error) {
	now := nowMS()
	s.mu.Lock()
	e, exists := s.data[key]
	if exists && e.expired(now) {
		exists = false
	}
	switch cond {
	case CondNX:
		if exists {
			s.mu.Unlock()
			return false, nil
		}
	case CondXX:
		if !exists {
			s.mu.Unlock()
			return false, nil
		}
	}
	s.data[key] = &Entry{Value: value, ExpiresAtMS: expiresAtMS}
	s.mu.Unlock()

	if err := s.appendRecord(aol.EncodeSet([]byte(key), value, expiresAtMS)); err != nil {
		return true, err
	}
	return true, nil
}

// GetSet atomically sets key=value (clearing expiry) and returns the
// previous value, or (nil, false) if absent/expired.
func (s *Store) GetSet(key string, value []byte) ([]byte, bool, error) {
	now := nowMS()
	s.mu.Lock()
	prev, existed := s.data[key]
	var prevVal []byte
	prevOK := false
	if existed && !prev.expired(now) {
		prevVal = prev.Value
		prevOK = true
	}
	s.data[key] = &Entry{Value: value, ExpiresAtMS: -1}
	s.mu.Unlock()

	if err := s.appendRecord(aol.EncodeSet([]byte(key), value, -1)); err != nil {
		return prevVal, prevOK, err
	}
	return prevVal, prevOK, nil
}

// GetDel returns the value for key and deletes it iff it was present
// and not expired.
func (s *Store) GetDel(key string) ([]byte, bool, error) {
	now := nowMS()
	s.mu.Lock()
	e, ok := s.data[key]
	if !ok || e.expired(now) {
		delete(s.data, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	val := e.Value
	delete(s.data, key)
	s.mu.Unlock()

	if err := s.appendRecord(aol.EncodeDel([]byte(key))); err != nil {
		return val, true, err
	}
	return val, true, nil
}

// GetEx returns key's current value and adjusts its expiry per mode.
func (s *Store) GetEx(key string, mode ExpireMode, expiresAtMS int64) ([]byte, bool, error) {
	now := nowMS()
	s.mu.Lock()
	e, ok := s.data[key]
	if !ok || e.expired(now) {
		s.mu.Unlock()
		return nil, false, nil
	}
	val := e.Value

	switch mode {
	case ExpireNone:
		s.mu.Unlock()
		return val, true, nil
	case ExpireEX, ExpirePX:
		e.ExpiresAtMS = expiresAtMS
	case ExpirePersist:
		e.ExpiresAtMS = -1
	}
	s.mu.Unlock()

	var err error
	if mode == ExpirePersist {
		err = s.appendRecord(aol.EncodePersist([]byte(key)))
	} else {
		err = s.appendRecord(aol.EncodeExpire([]byte(key), expiresAtMS))
	}
	if err != nil {
		return val, true, err
	}
	return val, true, nil
}

// MSet writes every pair unconditionally, holding the write lock for
// the whole batch.
func (s *Store) MSet(pairs map[string][]byte) error {
	s.mu.Lock()
	for k, v := range pairs {
		s.data[k] = &Entry{Value: v, ExpiresAtMS: -1}
	}
	s.mu.Unlock()

	for k, v := range pairs {
		if err := s.appendRecord(aol.EncodeSet([]byte(k), v, -1)); err != nil {
			return err
		}
	}
	return nil
}

// MSetNX writes all pairs iff none of the keys is presently live; the
// check and the writes hold the write lock continuously.
func (s *Store) MSetNX(pairs map[string][]byte) (bool, error) {
	now := nowMS()
	s.mu.Lock()
	for k := range pairs {
		if e, ok := s.data[k]; ok && !e.expired(now) {
			s.mu.Unlock()
			return false, nil
		}
	}
	for k, v := range pairs {
		s.data[k] = &Entry{Value: v, ExpiresAtMS: -1}
	}
	s.mu.Unlock()

	for k, v := range pairs {
		if err := s.appendRecord(aol.EncodeSet([]byte(k), v, -1)); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Del removes keys and returns the count actually removed.
func (s *Store) Del(keys []string) (int, error) {
	now := nowMS()
	removed := make([]string, 0, len(keys))
	s.mu.Lock()
	for _, k := range keys {
		if e, ok := s.data[k]; ok && !e.expired(now) {
			delete(s.data, k)
			removed = append(removed, k)
		} else if ok {
			delete(s.data, k)
		}
	}
	s.mu.Unlock()

	for _, k := range removed {
		if err := s.appendRecord(aol.EncodeDel([]byte(k))); err != nil {
			return len(removed), err
		}
	}
	return len(removed), nil
}

// Exists counts keys that are live, counting duplicates.
func (s *Store) Exists(keys []string) int {
	now := nowMS()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, k := range keys {
		if e, ok := s.data[k]; ok && !e.expired(now) {
			n++
		}
	}
	return n
}

// IncrBy applies delta to the integer interpretation of key (absent
// key treated as 0), preserving any existing expiry.
func (s *Store) IncrBy(key string, delta int64) (int64, error) {
	now := nowMS()
	s.mu.Lock()
	var current int64
	expiresAt := int64(-1)
	if e, ok := s.data[key]; ok && !e.expired(now) {
		v, err := parseStrictInt64(e.Value)
		if err != nil {
			s.mu.Unlock()
			return 0, err
		}
		current = v
		expiresAt = e.ExpiresAtMS
	}

	result, ok := checkedAddInt64(current, delta)
	if !ok {
		s.mu.Unlock()
		return 0, ErrOutOfRange
	}
	s.data[key] = &Entry{Value: formatInt64(result), ExpiresAtMS: expiresAt}
	s.mu.Unlock()

	if err := s.appendRecord(aol.EncodeSet([]byte(key), formatInt64(result), expiresAt)); err != nil {
		return result, err
	}
	return result, nil
}

// DecrBy negates delta and applies it via IncrBy; negating
// math.MinInt64 has no representable counterpart and is an overflow.
func (s *Store) DecrBy(key string, delta int64) (int64, error) {
	neg, ok := negateInt64(delta)
	if !ok {
		return 0, ErrOutOfRange
	}
	return s.IncrBy(key, neg)
}

// Append appends suffix to key's value (creating it if absent) and
// returns the new length, preserving any existing expiry.
func (s *Store) Append(key string, suffix []byte) (int, error) {
	now := nowMS()
	s.mu.Lock()
	expiresAt := int64(-1)
	var newVal []byte
	if e, ok := s.data[key]; ok && !e.expired(now) {
		newVal = append(append([]byte{}, e.Value...), suffix...)
		expiresAt = e.ExpiresAtMS
	} else {
		newVal = append([]byte{}, suffix...)
	}
	s.data[key] = &Entry{Value: newVal, ExpiresAtMS: expiresAt}
	s.mu.Unlock()

	if err := s.appendRecord(aol.EncodeSet([]byte(key), newVal, expiresAt)); err != nil {
		return len(newVal), err
	}
	return len(newVal), nil
}

// GetRange returns the inclusive byte slice [start,end] of key's value
// with negative-index normalization, or empty where formally empty.
func (s *Store) GetRange(key string, start, end int64) []byte {
	val, ok := s.Get(key)
	if !ok || len(val) == 0 {
		return []byte{}
	}
	l := int64(len(val))

	if start < 0 {
		start += l
	}
	if end < 0 {
		end += l
	}
	if start < 0 {
		start = 0
	}
	if end > l-1 {
		end = l - 1
	}
	if start > end || end < 0 || start >= l {
		return []byte{}
	}
	return append([]byte{}, val[start:end+1]...)
}

// SetRange overlays bytes at offset, zero-padding any gap, preserving
// existing expiry, and creating the key if absent.
func (s *Store) SetRange(key string, offset uint64, data []byte) (int, error) {
	now := nowMS()
	s.mu.Lock()
	expiresAt := int64(-1)
	var existing []byte
	if e, ok := s.data[key]; ok && !e.expired(now) {
		existing = e.Value
		expiresAt = e.ExpiresAtMS
	}

	need := offset + uint64(len(data))
	if uint64(len(existing)) < need {
		padded := make([]byte, need)
		copy(padded, existing)
		existing = padded
	} else {
		existing = append([]byte{}, existing...)
	}
	copy(existing[offset:], data)

	s.data[key] = &Entry{Value: existing, ExpiresAtMS: expiresAt}
	s.mu.Unlock()

	if err := s.appendRecord(aol.EncodeSet([]byte(key), existing, expiresAt)); err != nil {
		return len(existing), err
	}
	return len(existing), nil
}

// Strlen returns the byte length of key's value, or 0 if absent.
func (s *Store) Strlen(key string) int {
	val, ok := s.Get(key)
	if !ok {
		return 0
	}
	return len(val)
}

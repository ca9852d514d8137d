package store

import "math"

// parseStrictInt64 parses b as a signed 64-bit ASCII decimal with no
// leading '+', no whitespace, and no leading zeros beyond a lone "0".
func parseStrictInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, ErrNotInteger
	}

	neg := false
	i := 0
	if b[0] == '-' {
		neg = true
		i++
	}
	if i >= len(b) {
		return 0, ErrNotInteger
	}

	digits := b[i:]
	if len(digits) > 1 && digits[0] == '0' {
		return 0, ErrNotInteger
	}

	var magnitude uint64
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, ErrNotInteger
		}
		d := uint64(c - '0')
		if magnitude > (math.MaxUint64-d)/10 {
			return 0, ErrOutOfRange
		}
		magnitude = magnitude*10 + d
	}

	if neg {
		if magnitude > uint64(math.MaxInt64)+1 {
			return 0, ErrOutOfRange
		}
		return -int64(magnitude), nil
	}
	if magnitude > uint64(math.MaxInt64) {
		return 0, ErrOutOfRange
	}
	return int64(magnitude), nil
}

func formatInt64(v int64) []byte {
	return []byte(formatInt64String(v))
}

func formatInt64String(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	var buf [20]byte
	pos := len(buf)
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// checkedAddInt64 returns (a+b, true) if representable, else (0, false).
func checkedAddInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// negateInt64 returns (-v, true) unless v is math.MinInt64, which has
// no representable positive counterpart.
func negateInt64(v int64) (int64, bool) {
	if v == math.MinInt64 {
		return 0, false
	}
	return -v, true
}

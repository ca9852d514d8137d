package aol

import (
	"encoding/binary"
	"fmt"
)

// Magic is the fixed 6-byte header every AOL file begins with.
const Magic = "FDLOG1"

// Opcode identifies the payload shape of one AOL record.
type Opcode byte

const (
	OpSet     Opcode = 1
	OpDel     Opcode = 2
	OpExpire  Opcode = 3
	OpPersist Opcode = 4
)

// RecordHandler receives decoded records during replay. Implemented by
// the keyspace engine.
type RecordHandler interface {
	ApplySet(key, value []byte, expiresAtMS int64) error
	ApplyDel(key []byte) error
	ApplyExpire(key []byte, expiresAtMS int64) error
	ApplyPersist(key []byte) error
}

func putBytes(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, b...)
	return buf
}

func putInt64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}

// EncodeSet builds the payload for a SET record: key, value, expires-at.
func EncodeSet(key, value []byte, expiresAtMS int64) []byte {
	buf := make([]byte, 0, 1+4+len(key)+4+len(value)+8)
	buf = append(buf, byte(OpSet))
	buf = putBytes(buf, key)
	buf = putBytes(buf, value)
	buf = putInt64(buf, expiresAtMS)
	return buf
}

// EncodeDel builds the payload for a DEL record.
func EncodeDel(key []byte) []byte {
	buf := make([]byte, 0, 1+4+len(key))
	buf = append(buf, byte(OpDel))
	buf = putBytes(buf, key)
	return buf
}

// EncodeExpire builds the payload for an EXPIRE record.
func EncodeExpire(key []byte, expiresAtMS int64) []byte {
	buf := make([]byte, 0, 1+4+len(key)+8)
	buf = append(buf, byte(OpExpire))
	buf = putBytes(buf, key)
	buf = putInt64(buf, expiresAtMS)
	return buf
}

// EncodePersist builds the payload for a PERSIST record.
func EncodePersist(key []byte) []byte {
	buf := make([]byte, 0, 1+4+len(key))
	buf = append(buf, byte(OpPersist))
	buf = putBytes(buf, key)
	return buf
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) bytes() ([]byte, error) {
	if r.pos+4 > len(r.buf) {
		return nil, fmt.Errorf("truncated length prefix")
	}
	n := int(binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4]))
	r.pos += 4
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("truncated byte-string field")
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) int64() (int64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("truncated integer field")
	}
	v := int64(binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8]))
	r.pos += 8
	return v, nil
}

// decodeRecord dispatches one record's payload to h. payload[0] is the
// opcode; the remainder is opcode-specific.
func decodeRecord(payload []byte, h RecordHandler) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty record payload")
	}
	op := Opcode(payload[0])
	r := &byteReader{buf: payload[1:]}

	switch op {
	case OpSet:
		key, err := r.bytes()
		if err != nil {
			return fmt.Errorf("SET record: %w", err)
		}
		value, err := r.bytes()
		if err != nil {
			return fmt.Errorf("SET record: %w", err)
		}
		expiresAt, err := r.int64()
		if err != nil {
			return fmt.Errorf("SET record: %w", err)
		}
		return h.ApplySet(key, value, expiresAt)

	case OpDel:
		key, err := r.bytes()
		if err != nil {
			return fmt.Errorf("DEL record: %w", err)
		}
		return h.ApplyDel(key)

	case OpExpire:
		key, err := r.bytes()
		if err != nil {
			return fmt.Errorf("EXPIRE record: %w", err)
		}
		expiresAt, err := r.int64()
		if err != nil {
			return fmt.Errorf("EXPIRE record: %w", err)
		}
		return h.ApplyExpire(key, expiresAt)

	case OpPersist:
		key, err := r.bytes()
		if err != nil {
			return fmt.Errorf("PERSIST record: %w", err)
		}
		return h.ApplyPersist(key)

	default:
		return fmt.Errorf("unknown AOL opcode %d", op)
	}
}

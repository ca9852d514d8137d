// Package snapshot implements the full-keyspace point-in-time dump
// file: a fixed magic header followed by a stream of length-prefixed
// key/value/expiry triples, written atomically via temp-file+rename.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Magic is the fixed 6-byte header every snapshot file begins with.
const Magic = "FDSNP1"

// Entry is one live keyspace row.
type Entry struct {
	Key         []byte
	Value       []byte
	ExpiresAtMS int64 // -1 means no expiry
}

// Save writes entries to path via a sibling temp file, fsyncs it, then
// renames it over path. Either the old file remains untouched or the
// new one fully replaces it — there is no partial-write window visible
// to a later Load.
func Save(path string, entries []Entry) error {
	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}

	w := bufio.NewWriterSize(f, 64*1024)
	if _, err := w.WriteString(Magic); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	for _, e := range entries {
		if err := writeEntry(w, e); err != nil {
			f.Close()
			os.Remove(tempPath)
			return fmt.Errorf("snapshot: write entry: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("snapshot: flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("snapshot: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

func writeEntry(w *bufio.Writer, e Entry) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.Key)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(e.Key); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.Value)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(e.Value); err != nil {
		return err
	}
	var i64Buf [8]byte
	binary.BigEndian.PutUint64(i64Buf[:], uint64(e.ExpiresAtMS))
	if _, err := w.Write(i64Buf[:]); err != nil {
		return err
	}
	return nil
}

// Load reads a snapshot file and returns its entries. A missing file
// is not an error: it returns a nil slice.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("snapshot: %s: truncated before magic header", path)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("snapshot: %s: bad magic header %q", path, magic)
	}

	var entries []Entry
	for {
		key, err := readLenPrefixed(r)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("snapshot: %s: truncated key after %d entries: %w", path, len(entries), err)
		}

		value, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %s: truncated value after %d entries: %w", path, len(entries), err)
		}

		var i64Buf [8]byte
		if _, err := io.ReadFull(r, i64Buf[:]); err != nil {
			return nil, fmt.Errorf("snapshot: %s: truncated expiry after %d entries: %w", path, len(entries), err)
		}
		expiresAt := int64(binary.BigEndian.Uint64(i64Buf[:]))

		entries = append(entries, Entry{Key: key, Value: value, ExpiresAtMS: expiresAt})
	}
}

func readLenPrefixed(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}

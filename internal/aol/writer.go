package aol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// SyncPolicy selects when appended records are made durable.
type SyncPolicy int

const (
	// Always flushes and fsyncs before Append returns.
	Always SyncPolicy = iota
	// EverySec buffers appends; a background task flushes+fsyncs once a second.
	EverySec
	// No buffers appends and leaves flushing to the OS.
	No
)

func (p SyncPolicy) String() string {
	switch p {
	case Always:
		return "always"
	case EverySec:
		return "everysec"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

const defaultBufferSize = 64 * 1024
const batchQueueSize = 4096
const maxBatchRecords = 256

// Writer is the sole AOL appender. One writer per process; concurrent
// callers serialize on mu.
type Writer struct {
	path   string
	policy SyncPolicy

	mu   sync.Mutex
	file *os.File
	bw   *bufio.Writer

	queue  chan []byte
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool

	ticker *time.Ticker
	log    logrus.FieldLogger

	rewriteCount    atomic.Int64
	rewriteFailures atomic.Int64
	lastRewriteUnix atomic.Int64
}

// NewWriter opens (creating if necessary) the AOL file at path,
// writing the magic header on first creation, and readies it for
// appends under policy.
func NewWriter(path string, policy SyncPolicy, log logrus.FieldLogger) (*Writer, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	info, statErr := os.Stat(path)
	needsHeader := statErr != nil || info.Size() == 0

	if needsHeader {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("aol: create %s: %w", path, err)
		}
		if _, err := f.WriteString(Magic); err != nil {
			f.Close()
			return nil, fmt.Errorf("aol: write header: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("aol: sync header: %w", err)
		}
		f.Close()
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("aol: open %s for append: %w", path, err)
	}

	w := &Writer{
		path:   path,
		policy: policy,
		file:   file,
		bw:     bufio.NewWriterSize(file, defaultBufferSize),
		queue:  make(chan []byte, batchQueueSize),
		stopCh: make(chan struct{}),
		log:    log,
	}

	w.wg.Add(1)
	go w.drainLoop()

	if policy == EverySec {
		w.ticker = time.NewTicker(time.Second)
		w.wg.Add(1)
		go w.tickSync()
	}

	return w, nil
}

// Append durably records one opcode payload. Under Always, Append
// blocks until the record is flushed and fsynced. Under EverySec/No,
// the record is queued for the background drain goroutine.
func (w *Writer) Append(payload []byte) error {
	if w.policy == Always {
		return w.writeLocked(payload, true)
	}

	select {
	case w.queue <- payload:
		return nil
	default:
		// Queue saturated: apply backpressure by writing synchronously
		// without forcing a sync (the relaxed policy's contract).
		return w.writeLocked(payload, false)
	}
}

func (w *Writer) writeLocked(payload []byte, sync bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.writeOneLocked(payload); err != nil {
		return err
	}
	if sync {
		return w.flushAndSyncLocked()
	}
	return nil
}

func (w *Writer) writeOneLocked(payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.bw.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("aol: write length: %w", err)
	}
	if _, err := w.bw.Write(payload); err != nil {
		return fmt.Errorf("aol: write payload: %w", err)
	}
	return nil
}

func (w *Writer) flushAndSyncLocked() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("aol: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("aol: fsync: %w", err)
	}
	return nil
}

func (w *Writer) drainLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			w.drainRemaining()
			return
		case rec := <-w.queue:
			w.writeBatch(rec)
		}
	}
}

func (w *Writer) writeBatch(first []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if err := w.writeOneLocked(first); err != nil {
		w.log.WithError(err).Error("aol: batch write failed")
		return
	}
	for i := 0; i < maxBatchRecords; i++ {
		select {
		case rec := <-w.queue:
			if err := w.writeOneLocked(rec); err != nil {
				w.log.WithError(err).Error("aol: batch write failed")
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) drainRemaining() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		select {
		case rec := <-w.queue:
			w.writeOneLocked(rec)
		default:
			w.flushAndSyncLocked()
			return
		}
	}
}

func (w *Writer) tickSync() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ticker.C:
			w.mu.Lock()
			if !w.closed {
				if err := w.flushAndSyncLocked(); err != nil {
					w.log.WithError(err).Warn("aol: background sync failed")
				}
			}
			w.mu.Unlock()
		case <-w.stopCh:
			return
		}
	}
}

// Close flushes and fsyncs any buffered data, stops background tasks,
// and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopCh)
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("aol: close: %w", err)
	}
	return nil
}

// Entry is one live keyspace row handed to Rewrite.
type Entry struct {
	Key         []byte
	Value       []byte
	ExpiresAtMS int64 // -1 means no expiry
}

// Rewrite replaces the live AOL with a minimal SET-only log
// reconstructing entries, via temp-file-then-rename. The writer mutex
// is held for the whole operation: appenders block until it completes.
// On failure the original file is left intact and the failure counter
// is bumped; on success the rewrite counter and epoch are bumped.
func (w *Writer) Rewrite(entries []Entry) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	defer func() {
		if err != nil {
			w.rewriteFailures.Add(1)
		} else {
			w.rewriteCount.Add(1)
			w.lastRewriteUnix.Store(time.Now().Unix())
		}
	}()

	tempPath := w.path + ".rewrite.tmp"
	tempFile, ferr := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if ferr != nil {
		return fmt.Errorf("aol: create rewrite temp file: %w", ferr)
	}

	tw := bufio.NewWriterSize(tempFile, defaultBufferSize)
	if _, werr := tw.WriteString(Magic); werr != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("aol: write rewrite header: %w", werr)
	}

	for _, e := range entries {
		rec := EncodeSet(e.Key, e.Value, e.ExpiresAtMS)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(rec)))
		if _, werr := tw.Write(lenBuf[:]); werr != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return fmt.Errorf("aol: write rewrite record: %w", werr)
		}
		if _, werr := tw.Write(rec); werr != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return fmt.Errorf("aol: write rewrite record: %w", werr)
		}
	}

	if werr := tw.Flush(); werr != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("aol: flush rewrite file: %w", werr)
	}
	if werr := tempFile.Sync(); werr != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("aol: sync rewrite file: %w", werr)
	}
	if werr := tempFile.Close(); werr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("aol: close rewrite file: %w", werr)
	}

	// Flush whatever the live writer still had buffered before swapping
	// out from under it, then atomically replace.
	if werr := w.bw.Flush(); werr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("aol: flush live writer before rewrite: %w", werr)
	}
	if werr := os.Rename(tempPath, w.path); werr != nil {
		return fmt.Errorf("aol: rename rewrite file: %w", werr)
	}
	if cerr := w.file.Close(); cerr != nil {
		w.log.WithError(cerr).Warn("aol: error closing old file handle after rewrite")
	}

	newFile, oerr := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0644)
	if oerr != nil {
		return fmt.Errorf("aol: reopen after rewrite: %w", oerr)
	}
	w.file = newFile
	w.bw = bufio.NewWriterSize(newFile, defaultBufferSize)

	return nil
}

// Stats is a point-in-time snapshot of writer counters.
type Stats struct {
	Path            string
	Policy          SyncPolicy
	RewriteCount    int64
	RewriteFailures int64
	LastRewriteUnix int64
}

func (w *Writer) Stats() Stats {
	return Stats{
		Path:            w.path,
		Policy:          w.policy,
		RewriteCount:    w.rewriteCount.Load(),
		RewriteFailures: w.rewriteFailures.Load(),
		LastRewriteUnix: w.lastRewriteUnix.Load(),
	}
}

// Package tailer follows the web server access log and yields appended lines.
//
// The tailer starts at end-of-file (this is a live metrics engine, not a
// backfill tool) and polls for appended data. Rotation and truncation are
// detected by comparing file identity and size between polls; on rotation
// the new file is reopened at offset 0. Lines written to the old file after
// the last poll and before the rotation check are lost - a small, bounded
// loss window, never duplication.
//
// Transient I/O faults (log momentarily missing during rotation, read
// errors) are retried with jittered exponential backoff and surfaced only
// as counters.
package tailer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

const readBufferSize = 64 * 1024

// errStopped signals that the run context was cancelled mid-drain.
var errStopped = errors.New("tailer stopped")

// Stats holds tailer health counters.
type Stats struct {
	Lines     int64
	Bytes     int64
	Rotations int64
	Errors    int64
}

// Tailer follows a single log file and emits complete lines on a channel.
//
// The channel send is blocking: the ingestion loop downstream is the sole
// consumer and must keep up. Ordering is preserved and no line is emitted
// twice.
type Tailer struct {
	path         string
	pollInterval time.Duration
	backoff      *Backoff
	logger       *slog.Logger

	lines chan string

	// Current file state (owned by the Run goroutine)
	file    *os.File
	reader  *bufio.Reader
	info    os.FileInfo
	offset  int64
	partial strings.Builder

	// Health counters (atomic for concurrent Stats() reads)
	linesRead int64
	bytesRead int64
	rotations int64
	errCount  int64
}

// New creates a tailer for path. bufferSize is the line channel capacity.
func New(path string, pollInterval time.Duration, bufferSize int, backoff *Backoff, logger *slog.Logger) *Tailer {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	if bufferSize < 1 {
		bufferSize = 1024
	}
	if backoff == nil {
		backoff = NewBackoff(time.Now().UnixNano(), DefaultBackoffConfig())
	}

	return &Tailer{
		path:         path,
		pollInterval: pollInterval,
		backoff:      backoff,
		logger:       logger,
		lines:        make(chan string, bufferSize),
	}
}

// Lines returns the channel of complete log lines (without trailing newline).
// The channel is closed when Run returns.
func (t *Tailer) Lines() <-chan string {
	return t.lines
}

// Stats returns current tailer health counters.
func (t *Tailer) Stats() Stats {
	return Stats{
		Lines:     atomic.LoadInt64(&t.linesRead),
		Bytes:     atomic.LoadInt64(&t.bytesRead),
		Rotations: atomic.LoadInt64(&t.rotations),
		Errors:    atomic.LoadInt64(&t.errCount),
	}
}

// Run follows the file until ctx is cancelled. It closes the lines channel
// on return. The first successful open seeks to end-of-file; reopens after
// rotation start at offset 0.
func (t *Tailer) Run(ctx context.Context) {
	defer close(t.lines)
	defer t.closeFile()

	seekEnd := true

	for {
		if t.file == nil {
			if err := t.open(seekEnd); err != nil {
				atomic.AddInt64(&t.errCount, 1)
				t.logger.Debug("tailer_open_error", "path", t.path, "error", err)
				if !t.sleep(ctx, t.backoff.Next()) {
					return
				}
				continue
			}
			seekEnd = false
			t.backoff.Reset()
			t.logger.Info("tailer_opened", "path", t.path, "offset", t.offset)
		}

		err := t.drain(ctx)
		switch {
		case errors.Is(err, errStopped):
			return

		case errors.Is(err, io.EOF):
			rotated, statErr := t.checkRotation()
			if statErr != nil {
				// File gone mid-rotation; reopen with backoff.
				atomic.AddInt64(&t.errCount, 1)
				t.closeFile()
				if !t.sleep(ctx, t.backoff.Next()) {
					return
				}
				continue
			}
			if rotated {
				atomic.AddInt64(&t.rotations, 1)
				t.logger.Info("tailer_rotation_detected", "path", t.path)
				t.closeFile()
				continue
			}
			if !t.sleep(ctx, t.pollInterval) {
				return
			}

		default:
			atomic.AddInt64(&t.errCount, 1)
			t.logger.Warn("tailer_read_error", "path", t.path, "error", err)
			t.closeFile()
			if !t.sleep(ctx, t.backoff.Next()) {
				return
			}
		}
	}
}

// drain reads until EOF or error, emitting complete lines.
// A trailing fragment without a newline is held until the writer finishes it.
func (t *Tailer) drain(ctx context.Context) error {
	for {
		chunk, err := t.reader.ReadString('\n')
		if len(chunk) > 0 {
			t.offset += int64(len(chunk))
			atomic.AddInt64(&t.bytesRead, int64(len(chunk)))

			if strings.HasSuffix(chunk, "\n") {
				t.partial.WriteString(strings.TrimRight(chunk, "\r\n"))
				line := t.partial.String()
				t.partial.Reset()
				atomic.AddInt64(&t.linesRead, 1)

				select {
				case t.lines <- line:
				case <-ctx.Done():
					return errStopped
				}
			} else {
				t.partial.WriteString(chunk)
			}
		}
		if err != nil {
			return err
		}
	}
}

// checkRotation reports whether the path now refers to a different file or
// the file shrank below our read offset (truncation).
func (t *Tailer) checkRotation() (bool, error) {
	fi, err := os.Stat(t.path)
	if err != nil {
		return false, err
	}
	if t.info != nil && !os.SameFile(t.info, fi) {
		return true, nil
	}
	if fi.Size() < t.offset {
		return true, nil
	}
	return false, nil
}

// open opens the file and optionally seeks to end-of-file.
func (t *Tailer) open(seekEnd bool) error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	offset := int64(0)
	if seekEnd {
		offset, err = f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return err
		}
	}

	t.file = f
	t.info = fi
	t.offset = offset
	t.reader = bufio.NewReaderSize(f, readBufferSize)
	t.partial.Reset()
	return nil
}

// closeFile closes the current file handle, if any. Idempotent.
func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
		t.reader = nil
		t.info = nil
	}
}

// sleep waits for d or until ctx is cancelled. Returns false on cancellation.
func (t *Tailer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

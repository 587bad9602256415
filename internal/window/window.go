// Package window maintains time-bounded views of stream request activity:
// the short "currently listening" and long "recent activity" windows, and
// the trailing rate counters.
//
// Windows are keyed on event time, not processing time: entries arrive in
// roughly non-decreasing timestamp order and eviction trims from the oldest
// end while the head has expired, so insertion and eviction are amortized
// O(1). Small out-of-order jitter delays eviction of a misordered entry by
// at most the jitter; it never re-admits an expired one.
package window

import (
	"time"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Entry is one request inside a window.
type Entry struct {
	Timestamp   time.Time
	Fingerprint string
	Segment     bool // media segment request (vs playlist)
	Status      int
	Category    string // user agent category
}

// Counts holds running totals over a window's live entries.
type Counts struct {
	Total     int64
	Segments  int64
	Playlists int64

	Errors4xx int64
	Errors5xx int64

	SegmentOK    int64
	SegmentFail  int64
	PlaylistOK   int64
	PlaylistFail int64
}

// Window is a trailing time interval over request entries.
//
// Not safe for concurrent use; the Aggregator serializes access.
type Window struct {
	duration time.Duration

	entries []Entry
	head    int

	// Distinct fingerprints with >=1 successful segment request in the
	// window; the value is a refcount so eviction is O(1) per entry.
	fpCounts map[string]int

	// Per-category refcounts across all live entries
	catCounts map[string]int

	counts Counts
}

// newWindow creates an empty window of the given duration.
func newWindow(d time.Duration) *Window {
	return &Window{
		duration:  d,
		fpCounts:  make(map[string]int),
		catCounts: make(map[string]int),
	}
}

// add inserts one entry. Entries are assumed near-sorted by timestamp.
func (w *Window) add(e Entry) {
	w.entries = append(w.entries, e)

	w.counts.Total++
	if e.Segment {
		w.counts.Segments++
		if e.Status >= 400 {
			w.counts.SegmentFail++
		} else {
			w.counts.SegmentOK++
		}
	} else {
		w.counts.Playlists++
		if e.Status >= 400 {
			w.counts.PlaylistFail++
		} else {
			w.counts.PlaylistOK++
		}
	}

	switch {
	case e.Status >= 500:
		w.counts.Errors5xx++
	case e.Status >= 400:
		w.counts.Errors4xx++
	}

	// Only successful media fetches make a fingerprint an active listener
	if e.Segment && e.Status < 400 {
		w.fpCounts[e.Fingerprint]++
	}

	if e.Category != "" {
		w.catCounts[e.Category]++
	}
}

// evict drops entries older than the window, relative to now.
// Monotonic: an evicted entry is never re-admitted.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.duration)

	for w.head < len(w.entries) {
		e := &w.entries[w.head]
		if !e.Timestamp.Before(cutoff) {
			break
		}

		w.counts.Total--
		if e.Segment {
			w.counts.Segments--
			if e.Status >= 400 {
				w.counts.SegmentFail--
			} else {
				w.counts.SegmentOK--
			}
		} else {
			w.counts.Playlists--
			if e.Status >= 400 {
				w.counts.PlaylistFail--
			} else {
				w.counts.PlaylistOK--
			}
		}

		switch {
		case e.Status >= 500:
			w.counts.Errors5xx--
		case e.Status >= 400:
			w.counts.Errors4xx--
		}

		if e.Segment && e.Status < 400 {
			if n := w.fpCounts[e.Fingerprint] - 1; n > 0 {
				w.fpCounts[e.Fingerprint] = n
			} else {
				delete(w.fpCounts, e.Fingerprint)
			}
		}

		if e.Category != "" {
			if n := w.catCounts[e.Category] - 1; n > 0 {
				w.catCounts[e.Category] = n
			} else {
				delete(w.catCounts, e.Category)
			}
		}

		w.head++
	}

	w.compact()
}

// compact reclaims the evicted prefix once it dominates the slice.
func (w *Window) compact() {
	if w.head > 1024 && w.head*2 > len(w.entries) {
		n := copy(w.entries, w.entries[w.head:])
		w.entries = w.entries[:n]
		w.head = 0
	}
}

// active returns the number of distinct active listener fingerprints.
func (w *Window) active() int {
	return len(w.fpCounts)
}

// size returns the number of live entries (for tests).
func (w *Window) size() int {
	return len(w.entries) - w.head
}

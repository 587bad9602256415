package session

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// Class is the outcome of observing one event against the session table.
type Class int

const (
	// ClassSameSession means the fingerprint is already active; nothing new
	// to count.
	ClassSameSession Class = iota
	// ClassNew means the fingerprint had no record (or its record was
	// evicted) and one was created.
	ClassNew
	// ClassReturning means a record existed but the gap since its last
	// activity exceeded the TTL.
	ClassReturning
)

// String returns a human-readable name for the classification.
func (c Class) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassReturning:
		return "returning"
	default:
		return "same_session"
	}
}

// Record is a point-in-time copy of one fingerprint's state.
type Record struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Segments  int64
}

// record is the mutable internal state per fingerprint.
type record struct {
	firstSeen    time.Time
	sessionStart time.Time // start of the current session (reset on returning)
	lastSeen     time.Time
	segments     int64
}

// Stats holds tracker counters for the snapshot.
type Stats struct {
	ActiveSessions int
	NewTotal       int64
	ReturningTotal int64
	EvictedTotal   int64
}

// SessionStats summarizes the distribution of completed session durations.
type SessionStats struct {
	AvgSeconds float64
	P25Seconds float64
	P50Seconds float64
	P75Seconds float64
	Samples    int64
}

// Tracker classifies events as new / returning / same-session by
// fingerprint recency, bounded by a TTL-based sweep.
//
// Identity is anchored on segment requests: a record is created on a
// fingerprint's first segment fetch, so playlist pollers that never fetch
// media do not become listeners. Eviction discards history - a fingerprint
// reappearing after the TTL sweep removed it counts as new again, which is
// a documented limitation of stateless log-side identity.
//
// Thread-safe: Observe runs on the ingestion goroutine while Stats,
// SessionStats and Sweep are called from the publish cycle.
type Tracker struct {
	mu  sync.Mutex
	ttl time.Duration

	records map[string]*record

	newTotal       int64
	returningTotal int64
	evictedTotal   int64

	// Completed session duration distribution
	digest     *tdigest.TDigest
	durSum     float64
	durSamples int64
}

// NewTracker creates a tracker with the given inactivity TTL.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Tracker{
		ttl:     ttl,
		records: make(map[string]*record),
		digest:  tdigest.NewWithCompression(100),
	}
}

// Observe classifies one event and updates the fingerprint's record.
// isSegment marks media segment requests; only those create records.
func (t *Tracker) Observe(fp string, ts time.Time, isSegment bool) Class {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[fp]
	if !ok {
		if !isSegment {
			return ClassSameSession
		}
		t.records[fp] = &record{
			firstSeen:    ts,
			sessionStart: ts,
			lastSeen:     ts,
			segments:     1,
		}
		t.newTotal++
		return ClassNew
	}

	gap := ts.Sub(rec.lastSeen)

	if isSegment {
		rec.segments++
	}

	if gap > t.ttl {
		// Previous session completed; first_seen is retained.
		t.completeSession(rec)
		rec.sessionStart = ts
		rec.lastSeen = ts
		t.returningTotal++
		return ClassReturning
	}

	// Tolerate small out-of-order jitter: lastSeen never moves backwards.
	if ts.After(rec.lastSeen) {
		rec.lastSeen = ts
	}
	return ClassSameSession
}

// Sweep evicts fingerprints whose last activity is older than the TTL,
// relative to now. Runs periodically (not per-event) to bound scan cost;
// this is the sole mechanism bounding fingerprint cardinality.
// Returns the number of evicted records.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.ttl)
	evicted := 0
	for fp, rec := range t.records {
		if rec.lastSeen.Before(cutoff) {
			t.completeSession(rec)
			delete(t.records, fp)
			evicted++
		}
	}
	t.evictedTotal += int64(evicted)
	return evicted
}

// completeSession records the duration of the session ending at lastSeen.
// Caller must hold mu.
func (t *Tracker) completeSession(rec *record) {
	dur := rec.lastSeen.Sub(rec.sessionStart).Seconds()
	if dur < 0 {
		dur = 0
	}
	t.digest.Add(dur, 1)
	t.durSum += dur
	t.durSamples++
}

// Lookup returns a copy of the record for a fingerprint, if present.
func (t *Tracker) Lookup(fp string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[fp]
	if !ok {
		return Record{}, false
	}
	return Record{
		FirstSeen: rec.firstSeen,
		LastSeen:  rec.lastSeen,
		Segments:  rec.segments,
	}, true
}

// Stats returns current tracker counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		ActiveSessions: len(t.records),
		NewTotal:       t.newTotal,
		ReturningTotal: t.returningTotal,
		EvictedTotal:   t.evictedTotal,
	}
}

// SessionStats returns the completed-session duration distribution.
// Percentiles come from the t-digest; zero samples yields all zeros.
func (t *Tracker) SessionStats() SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.durSamples == 0 {
		return SessionStats{}
	}
	return SessionStats{
		AvgSeconds: t.durSum / float64(t.durSamples),
		P25Seconds: t.digest.Quantile(0.25),
		P50Seconds: t.digest.Quantile(0.50),
		P75Seconds: t.digest.Quantile(0.75),
		Samples:    t.durSamples,
	}
}

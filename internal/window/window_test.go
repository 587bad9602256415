package window

import (
	"fmt"
	"testing"
	"time"
)

var t0 = time.Date(2026, 8, 21, 14, 0, 0, 0, time.UTC)

func segEntry(ts time.Time, fp string, status int) Entry {
	return Entry{Timestamp: ts, Fingerprint: fp, Segment: true, Status: status, Category: "iOS"}
}

func TestWindowAddAndEvict(t *testing.T) {
	w := newWindow(60 * time.Second)

	w.add(segEntry(t0, "a", 200))
	w.add(segEntry(t0.Add(30*time.Second), "b", 200))
	w.add(segEntry(t0.Add(59*time.Second), "a", 200))

	if w.active() != 2 {
		t.Errorf("active = %d, want 2", w.active())
	}
	if w.counts.Total != 3 {
		t.Errorf("total = %d, want 3", w.counts.Total)
	}

	// t0 entry ages out; "a" stays active via its later entry
	w.evict(t0.Add(70 * time.Second))
	if w.active() != 2 {
		t.Errorf("active after first evict = %d, want 2", w.active())
	}
	if w.size() != 2 {
		t.Errorf("size = %d, want 2", w.size())
	}

	// Only the 59s entry survives
	w.evict(t0.Add(100 * time.Second))
	if w.active() != 1 {
		t.Errorf("active after second evict = %d, want 1", w.active())
	}
	if w.counts.Total != 1 {
		t.Errorf("total = %d, want 1", w.counts.Total)
	}
}

func TestWindowFailedSegmentsNotActive(t *testing.T) {
	w := newWindow(60 * time.Second)

	w.add(segEntry(t0, "a", 404))
	if w.active() != 0 {
		t.Errorf("a failed fetch should not make a listener active, active = %d", w.active())
	}
	if w.counts.Errors4xx != 1 || w.counts.SegmentFail != 1 {
		t.Errorf("error counters wrong: %+v", w.counts)
	}
}

func TestWindowPlaylistCounts(t *testing.T) {
	w := newWindow(60 * time.Second)

	w.add(Entry{Timestamp: t0, Fingerprint: "a", Segment: false, Status: 200, Category: "CLI"})
	w.add(Entry{Timestamp: t0, Fingerprint: "a", Segment: false, Status: 500, Category: "CLI"})

	if w.counts.Playlists != 2 || w.counts.PlaylistOK != 1 || w.counts.PlaylistFail != 1 {
		t.Errorf("playlist counters wrong: %+v", w.counts)
	}
	if w.counts.Errors5xx != 1 {
		t.Errorf("errors 5xx = %d, want 1", w.counts.Errors5xx)
	}
	if w.active() != 0 {
		t.Error("playlist-only traffic should not create active listeners")
	}
}

func TestWindowCategoryRefcounts(t *testing.T) {
	w := newWindow(60 * time.Second)

	w.add(segEntry(t0, "a", 200))
	w.add(segEntry(t0.Add(30*time.Second), "b", 200))

	if w.catCounts["iOS"] != 2 {
		t.Errorf("iOS count = %d, want 2", w.catCounts["iOS"])
	}

	w.evict(t0.Add(61 * time.Second))
	if w.catCounts["iOS"] != 1 {
		t.Errorf("iOS count after evict = %d, want 1", w.catCounts["iOS"])
	}

	w.evict(t0.Add(2 * time.Minute))
	if _, ok := w.catCounts["iOS"]; ok {
		t.Error("empty category should be deleted")
	}
}

func TestWindowCompaction(t *testing.T) {
	w := newWindow(time.Second)

	for i := 0; i < 3000; i++ {
		w.add(segEntry(t0.Add(time.Duration(i)*time.Millisecond), fmt.Sprintf("fp%d", i%7), 200))
	}
	w.evict(t0.Add(time.Hour))

	if w.size() != 0 {
		t.Errorf("size = %d, want 0 after full eviction", w.size())
	}
	if w.head != 0 {
		t.Errorf("head = %d, want 0 after compaction", w.head)
	}
	if w.active() != 0 || w.counts.Total != 0 {
		t.Errorf("counters should be zero after full eviction: active=%d counts=%+v", w.active(), w.counts)
	}
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/randomizedcoder/hls-listener-stats/internal/snapshot"
)

func TestUpdateFromSnapshot(t *testing.T) {
	age := 1.5
	s := &snapshot.MetricsSnapshot{
		ActiveShort:        42,
		ActiveLong:         57,
		NewCount:           10,
		ReturningCount:     5,
		RequestsPerSec:     1.5,
		ErrorRate:          0.05,
		Latency:            snapshot.Latency{Seconds: 12.4, Confidence: "estimated"},
		PlaylistAgeSeconds: &age,
		IngestUp:           true,
		ParseErrorCount:    3,
		Tailer:             snapshot.TailerHealth{Lines: 1000, Rotations: 2, Errors: 1},
	}

	UpdateFromSnapshot(s)

	if got := testutil.ToFloat64(statsActiveShort); got != 42 {
		t.Errorf("active short gauge = %v, want 42", got)
	}
	if got := testutil.ToFloat64(statsLatencySeconds); got != 12.4 {
		t.Errorf("latency gauge = %v, want 12.4", got)
	}
	if got := testutil.ToFloat64(statsLatencyAvailable); got != 1 {
		t.Errorf("latency available gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(statsIngestUp); got != 1 {
		t.Errorf("ingest up gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(statsPlaylistAge); got != 1.5 {
		t.Errorf("playlist age gauge = %v, want 1.5", got)
	}
	if got := testutil.ToFloat64(statsErrorRate); got != 0.05 {
		t.Errorf("error rate gauge = %v, want 0.05", got)
	}
	if got := testutil.ToFloat64(statsRotations); got != 2 {
		t.Errorf("rotations gauge = %v, want 2", got)
	}
}

func TestUpdateUnavailableLatency(t *testing.T) {
	s := &snapshot.MetricsSnapshot{
		Latency: snapshot.Latency{Confidence: "unavailable"},
	}
	UpdateFromSnapshot(s)

	if got := testutil.ToFloat64(statsLatencyAvailable); got != 0 {
		t.Errorf("latency available gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(statsIngestUp); got != 0 {
		t.Errorf("ingest up gauge = %v, want 0", got)
	}
}

func TestRegisterMetricsIdempotent(t *testing.T) {
	// Must not panic on double registration
	RegisterMetrics()
	RegisterMetrics()
}

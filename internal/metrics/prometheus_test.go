package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/livewave-go/pkg/audio/capture"
	"github.com/harperreed/livewave-go/pkg/live"
	"github.com/harperreed/livewave-go/pkg/playback"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	stats live.Stats
}

func (f *fakeSource) Stats() live.Stats { return f.stats }

func TestMetricsReadAtScrape(t *testing.T) {
	src := &fakeSource{}
	reg := prometheus.NewRegistry()
	m := New(reg, src)

	if got := testutil.ToFloat64(m.ChunksSent); got != 0 {
		t.Errorf("expected 0 chunks sent, got %v", got)
	}

	src.stats = live.Stats{
		Capture:     capture.ChainStats{Blocks: 10, Sent: 9, Dropped: 1},
		Playback:    playback.SchedulerStats{Enqueued: 5, Ended: 3, Gaps: 2},
		InFlight:    2,
		Turns:       4,
		Interrupts:  1,
		OutputClock: 1500 * time.Millisecond,
	}

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"blocks", m.BlocksCaptured, 10},
		{"sent", m.ChunksSent, 9},
		{"dropped", m.ChunksDropped, 1},
		{"scheduled", m.BuffersScheduled, 5},
		{"ended", m.BuffersEnded, 3},
		{"gaps", m.PlaybackGaps, 2},
		{"in flight", m.BuffersInFlight, 2},
		{"turns", m.Turns, 4},
		{"interrupts", m.Interrupts, 1},
		{"clock", m.OutputClockSeconds, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	// Registering twice on fresh registries must not panic
	New(prometheus.NewRegistry(), &fakeSource{})
	New(prometheus.NewRegistry(), &fakeSource{})
}

func TestHandler(t *testing.T) {
	src := &fakeSource{stats: live.Stats{Turns: 7}}
	reg := prometheus.NewRegistry()
	New(reg, src)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "livewave_turns_total 7") {
		t.Errorf("turns metric missing from scrape:\n%s", body)
	}
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/playback"
)

type fakeStats map[cache.Level]cache.Stats

func (f fakeStats) Stats() map[cache.Level]cache.Stats { return f }

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("scrape returned %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("reading scrape failed: %v", err)
	}
	return string(body)
}

func TestMetrics(t *testing.T) {
	m := New(func() int { return 3 })
	var _ playback.Observer = m

	m.Command("toggle")
	m.Command("toggle")
	m.Command("seek")
	m.StateChanged(playback.Playing)
	m.Regeneration("applied", 2*time.Second)
	m.Regeneration("superseded", time.Second)
	m.DocumentLoaded("PDF")
	m.ExtractionFailed("url")
	m.WatchCache(fakeStats{
		cache.LevelMemory: {Items: 4, Size: 1024, Hits: 7, Misses: 2},
	})

	body := scrape(t, m)
	want := []string{
		`readaloud_commands_total{command="toggle"} 2`,
		`readaloud_commands_total{command="seek"} 1`,
		`readaloud_playback_state{state="playing"} 1`,
		`readaloud_playback_state{state="idle"} 0`,
		`readaloud_regenerations_total{outcome="applied"} 1`,
		`readaloud_regenerations_total{outcome="superseded"} 1`,
		`readaloud_regeneration_seconds_count 1`,
		`readaloud_documents_loaded_total{kind="PDF"} 1`,
		`readaloud_extraction_errors_total{source="url"} 1`,
		`readaloud_state_subscribers 3`,
		`readaloud_cache_items{level="memory"} 4`,
		`readaloud_cache_hits_total{level="memory"} 7`,
		`go_goroutines`,
	}
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("scrape missing %q", w)
		}
	}
}

func TestNoSubscriberGauge(t *testing.T) {
	body := scrape(t, New(nil))
	if strings.Contains(body, "readaloud_state_subscribers") {
		t.Error("subscriber gauge registered without a source")
	}
	if !strings.Contains(body, `readaloud_playback_state{state="idle"} 1`) {
		t.Error("initial state not idle")
	}
}

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tonykolomeytsev/figx/internal/events"
)

func TestCollectorWritesPrometheusTextFile(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	feed := []events.Event{
		events.PipelineFinished{Label: "//a:x"},
		events.PipelineFinished{Label: "//a:y", Err: errors.New("boom")},
		events.CacheHit{Key: "k", Bytes: 10},
		events.CacheMiss{Key: "k2"},
		events.BytesDownloaded{Remote: "icons", Bytes: 1234},
		events.StepFinished{Kind: "export-from-remote", Duration: 42 * time.Millisecond},
	}
	for i, ev := range feed {
		c.Observe(events.Envelope{ID: int64(i + 1), At: time.Now(), Ev: ev})
	}

	outDir := t.TempDir()
	if err := c.WriteFile(outDir); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{
		`figx_resources_total{result="ok"} 1`,
		`figx_resources_total{result="failed"} 1`,
		`figx_files_total 1`,
		`figx_cache_hits_total 1`,
		`figx_cache_misses_total 1`,
		`figx_bytes_downloaded_total 1234`,
		`figx_step_duration_seconds_count{kind="export-from-remote"} 1`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("metrics file missing %q:\n%s", want, s)
		}
	}
}

func TestWriteFileIsRepeatable(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	outDir := t.TempDir()
	if err := c.WriteFile(outDir); err != nil {
		t.Fatal(err)
	}
	c.Observe(events.Envelope{Ev: events.CacheHit{}})
	if err := c.WriteFile(outDir); err != nil {
		t.Fatalf("second WriteFile: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(outDir, FileName))
	if !strings.Contains(string(data), "figx_cache_hits_total 1") {
		t.Errorf("second write did not refresh counters:\n%s", data)
	}
}

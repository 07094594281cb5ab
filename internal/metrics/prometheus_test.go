package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusRecorder_Exposes(t *testing.T) {
	rec := NewPrometheusRecorder(nil)
	rec.ObserveStageDuration("render", 20*time.Millisecond)
	rec.ObserveBuildDuration(time.Second)
	rec.IncBuildOutcome(OutcomeSuccess)
	rec.SetPages("post", 7)
	rec.SetLiveReloadClients(2)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`quire_stage_duration_seconds_count{stage="render"} 1`,
		`quire_build_outcomes_total{outcome="success"} 1`,
		`quire_pages{kind="post"} 7`,
		`quire_livereload_clients 2`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNoopRecorder_SatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveBuildDuration(time.Second)
	r.IncBuildOutcome(OutcomeFailed)
}

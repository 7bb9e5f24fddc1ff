package middleware

import (
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urlbind-dev/urlbind/pkg/protocol"
	"github.com/urlbind-dev/urlbind/pkg/server"
)

// testRegistry backs every metrics test. The package registers its
// collectors once, so all tests share one registry and keep their
// label values distinct.
var testRegistry = prometheus.NewRegistry()

func newTestCtx(t *testing.T, eventName string) server.Ctx {
	t.Helper()
	sess := server.NewMockSession("/blog?tag=go")
	return server.NewTestCtx(sess, &protocol.Event{Seq: 1, Name: eventName})
}

// gather returns the value of the metric name with exactly the given
// labels, or 0 when no such series exists yet.
func gather(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := testRegistry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	if len(got) != len(want) {
		return false
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestPrometheusCountsSuccess(t *testing.T) {
	mw := Prometheus(WithRegistry(testRegistry))
	c := newTestCtx(t, "filter.select")

	called := false
	err := mw(c, func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("middleware error = %v, want nil", err)
	}
	if !called {
		t.Fatal("middleware did not call next")
	}

	labels := map[string]string{"event": "filter.select", "status": "success"}
	if got := gather(t, "urlbind_events_total", labels); got != 1 {
		t.Errorf("events_total = %v, want 1", got)
	}
	if got := gather(t, "urlbind_event_duration_seconds", map[string]string{"event": "filter.select"}); got != 1 {
		t.Errorf("event_duration sample count = %v, want 1", got)
	}
}

func TestPrometheusCountsErrors(t *testing.T) {
	mw := Prometheus(WithRegistry(testRegistry))
	c := newTestCtx(t, "page.next")

	wantErr := errors.New("backend timeout")
	if err := mw(c, func() error { return wantErr }); err != wantErr {
		t.Fatalf("middleware error = %v, want %v", err, wantErr)
	}

	if got := gather(t, "urlbind_events_total", map[string]string{"event": "page.next", "status": "error"}); got != 1 {
		t.Errorf("events_total{status=error} = %v, want 1", got)
	}
	if got := gather(t, "urlbind_event_errors_total", map[string]string{"event": "page.next", "error_type": "timeout"}); got != 1 {
		t.Errorf("event_errors_total{error_type=timeout} = %v, want 1", got)
	}
}

func TestPrometheusUnnamedEvent(t *testing.T) {
	mw := Prometheus(WithRegistry(testRegistry))
	c := newTestCtx(t, "")

	if err := mw(c, func() error { return nil }); err != nil {
		t.Fatalf("middleware error = %v", err)
	}
	if got := gather(t, "urlbind_events_total", map[string]string{"event": "unknown", "status": "success"}); got != 1 {
		t.Errorf("events_total{event=unknown} = %v, want 1", got)
	}
}

func TestPrometheusObserver(t *testing.T) {
	obs := PrometheusObserver(WithRegistry(testRegistry))

	obs.RecordSessionStart()
	obs.RecordSessionStart()
	obs.RecordSessionEnd()
	if got := gather(t, "urlbind_active_sessions", nil); got != 1 {
		t.Errorf("active_sessions = %v, want 1", got)
	}

	obs.RecordCommit("push")
	obs.RecordCommit("replace")
	obs.RecordCommit("replace")
	if got := gather(t, "urlbind_commits_total", map[string]string{"mode": "replace"}); got != 2 {
		t.Errorf("commits_total{mode=replace} = %v, want 2", got)
	}
	if got := gather(t, "urlbind_commits_total", map[string]string{"mode": "push"}); got != 1 {
		t.Errorf("commits_total{mode=push} = %v, want 1", got)
	}

	obs.RecordFrameSent("commit", 24)
	obs.RecordFrameSent("commit", 16)
	if got := gather(t, "urlbind_frames_sent_total", map[string]string{"type": "commit"}); got != 2 {
		t.Errorf("frames_sent_total = %v, want 2", got)
	}
	if got := gather(t, "urlbind_bytes_sent_total", nil); got != 40 {
		t.Errorf("bytes_sent_total = %v, want 40", got)
	}

	obs.RecordTransportError("write")
	if got := gather(t, "urlbind_websocket_errors_total", map[string]string{"op": "write"}); got != 1 {
		t.Errorf("websocket_errors_total = %v, want 1", got)
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("read timeout exceeded"), "timeout"},
		{errors.New("handler not found"), "not_found"},
		{errors.New("event queue full"), "queue_full"},
		{errors.New("session closed"), "closed"},
		{errors.New("websocket: bad frame"), "websocket"},
		{errors.New("something else"), "internal"},
	}
	for _, tt := range tests {
		if got := categorizeError(tt.err); got != tt.want {
			t.Errorf("categorizeError(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/greut/sipi/shard"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.ObserveResize(true)
	m.ObserveStep(shard.Step{Op: shard.OpMove})
	m.SetShardLevels(2)

	if m.Enabled() {
		t.Error("nil metrics should be disabled")
	}
	if New(false) != nil {
		t.Error("New(false) should return nil")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("got %#v want %#v", rec.Code, http.StatusNotFound)
	}
}

func TestCounters(t *testing.T) {
	m := New(true)

	m.ObserveResize(true)
	m.ObserveResize(true)
	m.ObserveResize(false)
	m.ObserveStep(shard.Step{Op: shard.OpMkdir})
	m.ObserveStep(shard.Step{Op: shard.OpMove})
	m.ObserveStep(shard.Step{Op: shard.OpMove})
	m.SetShardLevels(3)

	var tests = []struct {
		name string
		got  float64
		want float64
	}{
		{"reduce only", testutil.ToFloat64(m.resizesTotal.WithLabelValues("true")), 2},
		{"resampled", testutil.ToFloat64(m.resizesTotal.WithLabelValues("false")), 1},
		{"mkdir", testutil.ToFloat64(m.migrationSteps.WithLabelValues("mkdir")), 1},
		{"move", testutil.ToFloat64(m.migrationSteps.WithLabelValues("move")), 2},
		{"levels", testutil.ToFloat64(m.shardLevels), 3},
	}

	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("%s: got %#v want %#v", test.name, test.got, test.want)
		}
	}
}

func TestInstrument(t *testing.T) {
	m := New(true)

	h := m.Instrument("teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("teapot", "418"))
	if got != 1 {
		t.Errorf("got %#v want %#v", got, 1.)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "sipi_http_requests_total") {
		t.Errorf("exposition is missing the request counter:\n%s", body)
	}
}

package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieetl/internal/metrics"
)

// read returns the written protobuf form of a single series.
func read(t *testing.T, m prometheus.Metric) *dto.Metric {
	t.Helper()
	out := &dto.Metric{}
	require.NoError(t, m.Write(out))
	return out
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	return read(t, c).GetCounter().GetValue()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	_, err := NewBackend("job", "")
	require.Error(t, err)

	b, err := NewBackend("", "http://pushgateway:9091")
	require.NoError(t, err)
	assert.Equal(t, "etl", b.jobName)

	b, err = NewBackend("movie_ratings", "http://pushgateway:9091")
	require.NoError(t, err)
	assert.Equal(t, "movie_ratings", b.jobName)
}

func TestIncCounterRoutesByName(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("etl", "http://example.com")
	require.NoError(t, err)

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"step": "load", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{"dataset": "ratings", "kind": "read"})
	b.IncCounter(metrics.RecordsTotal, 2, metrics.Labels{"dataset": "ratings", "kind": "read"})
	b.IncCounter(metrics.CommitsTotal, 1, metrics.Labels{"location": "bronze/movies"})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	assert.Equal(t, 3.0, counterValue(t, b.stepCounter.WithLabelValues("load", "success")))
	assert.Equal(t, 7.0, counterValue(t, b.recordCounter.WithLabelValues("ratings", "read")))
	assert.Equal(t, 1.0, counterValue(t, b.commitCounter.WithLabelValues("bronze/movies")))
	assert.Equal(t, 0.0, counterValue(t, b.stepCounter.WithLabelValues("x", "y")))
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("etl", "http://example.com")
	require.NoError(t, err)

	b.ObserveHistogram(metrics.StepDuration, 1.5, metrics.Labels{"step": "aggregate", "status": "success"})
	b.ObserveHistogram("other_metric", 2.0, metrics.Labels{"step": "aggregate", "status": "success"})

	s := read(t, b.stepDuration.WithLabelValues("aggregate", "success").(prometheus.Metric)).GetSummary()
	assert.Equal(t, uint64(1), s.GetSampleCount())
	assert.Equal(t, 1.5, s.GetSampleSum())
}

func TestSetGauge(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("etl", "http://example.com")
	require.NoError(t, err)

	b.SetGauge(metrics.QualityGauge, 12, metrics.Labels{"check": "gold_rows"})
	b.SetGauge(metrics.QualityGauge, 9, metrics.Labels{"check": "gold_rows"})
	b.SetGauge("other", 1, metrics.Labels{"check": "gold_rows"})

	g := read(t, b.quality.WithLabelValues("gold_rows")).GetGauge()
	assert.Equal(t, 9.0, g.GetValue())
}

func TestFlushPushesRegistry(t *testing.T) {
	t.Parallel()

	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath, gotBody = r.URL.Path, string(body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("movie_ratings", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "load", "status": "success"})

	require.NoError(t, b.Flush())
	assert.True(t, strings.HasSuffix(gotPath, "/job/movie_ratings"), gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestFlushReportsGatewayErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("etl", srv.URL)
	require.NoError(t, err)
	require.Error(t, b.Flush())
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegistryExportsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.EdgesProcessed.Add(5)
	r.Iterations.Inc()
	r.RingDepth.WithLabelValues("engine-0-in").Set(3)
	r.ReducerLag.WithLabelValues("0").Observe(0.002)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["mosaic_edges_processed_total"])
	require.True(t, names["mosaic_iterations_total"])
	require.True(t, names["mosaic_ring_depth"])
	require.True(t, names["mosaic_reducer_lag_seconds"])
}

func TestPrometheusSinkObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)
	sink := PrometheusSink{Reg: r}

	sink.ObserveEdgesProcessed(7)
	sink.ObserveIteration()
	sink.ObserveReducerLag(2, 0.01)

	require.Equal(t, float64(7), testutil.ToFloat64(r.EdgesProcessed))
}

func TestServerHealthz(t *testing.T) {
	s := NewServer(":0")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Engine.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRegistryDumpText(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)
	r.EdgesProcessed.Add(3)

	var buf strings.Builder
	require.NoError(t, r.DumpText(&buf))
	require.Contains(t, buf.String(), "mosaic_edges_processed_total 3")
}

func TestServeDashboardMissingDirDoesNotPanic(t *testing.T) {
	s := NewServer(":0")
	s.ServeDashboard(t.TempDir() + "/does-not-exist")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/index.html", nil)
	require.NotPanics(t, func() { s.Engine.ServeHTTP(rr, req) })
	require.Equal(t, http.StatusNotFound, rr.Code)
}

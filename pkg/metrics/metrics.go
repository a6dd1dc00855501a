// Package metrics exposes the engine's Prometheus counters/gauges and the
// status HTTP server, grounded on the teacher's dependency stack
// (prometheus/client_golang, gin, cmux — see SPEC_FULL.md §B) and the
// counter/gauge registration style used across the example pack (e.g.
// prometheus.NewCounter/NewGauge with a name+help pair per metric).
package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/soheilhy/cmux"
)

// Registry bundles every metric the engine publishes (spec.md §5
// "Scheduling"/§8 invariants are the events these counters track).
type Registry struct {
	RingDepth      *prometheus.GaugeVec
	ActiveTiles    *prometheus.GaugeVec
	EdgesProcessed prometheus.Counter
	ReducerLag     *prometheus.HistogramVec
	Iterations     prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewRegistry registers every metric against reg (pass
// prometheus.NewRegistry() in tests, prometheus.DefaultRegisterer in
// production).
func NewRegistry(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	gatherer, _ := reg.(prometheus.Gatherer)
	return &Registry{
		gatherer: gatherer,
		RingDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mosaic_ring_depth",
			Help: "Occupied slots in a ring buffer, by ring name.",
		}, []string{"ring"}),
		ActiveTiles: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mosaic_active_tiles",
			Help: "Tiles marked active in tile_active_current, by engine id.",
		}, []string{"engine"}),
		EdgesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "mosaic_edges_processed_total",
			Help: "Edges folded by PullGather across all tiles.",
		}),
		ReducerLag: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mosaic_reducer_lag_seconds",
			Help:    "Delay between a tile's processed response and its reduction, by stripe.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stripe"}),
		Iterations: f.NewCounter(prometheus.CounterOpts{
			Name: "mosaic_iterations_total",
			Help: "Completed RunIteration calls.",
		}),
	}
}

// EventSink is the perf-sampling hook SPEC_FULL.md §C.5 folds in from the
// original's edge-perfmon/vertex-perfmon files, decoupling reporters from
// *Registry so a no-op sink can stand in. No engine, domain or algorithm
// component is handed a sink or calls one.
type EventSink interface {
	ObserveEdgesProcessed(n uint64)
	ObserveReducerLag(stripe int, seconds float64)
	ObserveIteration()
}

// PrometheusSink adapts a Registry to EventSink.
type PrometheusSink struct{ Reg *Registry }

func (s PrometheusSink) ObserveEdgesProcessed(n uint64) { s.Reg.EdgesProcessed.Add(float64(n)) }
func (s PrometheusSink) ObserveReducerLag(stripe int, seconds float64) {
	s.Reg.ReducerLag.WithLabelValues(strconv.Itoa(stripe)).Observe(seconds)
}
func (s PrometheusSink) ObserveIteration() { s.Reg.Iterations.Inc() }

// DumpText writes every gathered metric family to w in the Prometheus text
// exposition format, for the on-disk status snapshot spec.md §6's
// well-known port otherwise only serves over HTTP.
func (r *Registry) DumpText(w io.Writer) error {
	if r.gatherer == nil {
		return fmt.Errorf("metrics: registry has no gatherer to dump")
	}
	mfs, err := r.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gathering metric families: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encoding metric family %q: %w", mf.GetName(), err)
		}
	}
	return nil
}

// NoopSink discards every observation.
type NoopSink struct{}

func (NoopSink) ObserveEdgesProcessed(uint64)   {}
func (NoopSink) ObserveReducerLag(int, float64) {}
func (NoopSink) ObserveIteration()              {}

// Server serves a gin-routed /metrics and /healthz endpoint on one
// well-known port behind cmux (spec.md §6 "well-known port"; SPEC_FULL.md
// §B). Only an HTTP matcher is registered; no ring-transport listener
// shares the port.
type Server struct {
	Addr   string
	Engine *gin.Engine

	listener net.Listener
	cm       cmux.CMux
	http     *http.Server
}

// NewServer builds the gin router with /metrics and /healthz, but does not
// bind a socket yet (see Start).
func NewServer(addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return &Server{Addr: addr, Engine: r}
}

// ServeDashboard mounts dir as the status page's static assets (spec.md §6
// "well-known port" status page), under /dashboard. A missing dir is
// tolerated — the route then 404s instead of failing server startup.
func (s *Server) ServeDashboard(dir string) {
	s.Engine.Use(static.Serve("/dashboard", static.LocalFile(dir, false)))
}

// Start binds addr, splits it with cmux into an HTTP matcher (everything
// this process serves today) and starts serving. The returned shutdown
// func stops the HTTP server and the listener.
func (s *Server) Start(ctx context.Context) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	s.cm = cmux.New(ln)
	httpLn := s.cm.Match(cmux.HTTP1Fast())

	s.http = &http.Server{Handler: s.Engine}
	go func() { _ = s.http.Serve(httpLn) }()
	go func() { _ = s.cm.Serve() }()

	return func(shutdownCtx context.Context) error {
		_ = s.http.Shutdown(shutdownCtx)
		s.cm.Close()
		return nil
	}, nil
}

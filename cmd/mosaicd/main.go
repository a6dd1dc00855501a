// Command mosaicd is the engine's process entrypoint: it loads the
// configuration surface (spec.md §6), opens the on-disk file set, wires one
// Engine per configured edge processor plus the Vertex Domain, and drives
// the iteration loop to convergence or max_iterations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/config"
	"github.com/sslab-gatech/mosaic-engine/pkg/diskio"
	"github.com/sslab-gatech/mosaic-engine/pkg/edgeengine"
	"github.com/sslab-gatech/mosaic-engine/pkg/logging"
	"github.com/sslab-gatech/mosaic-engine/pkg/metrics"
	"github.com/sslab-gatech/mosaic-engine/pkg/pipeline"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexdomain"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram/algorithms"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	seed := flag.Uint64("seed", 0, "seed vertex for reachability/sssp algorithms")
	flag.Parse()

	log := logging.NewLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.WithContext(ctx, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Lifecycle(log, "signal received, shutting down")
		cancel()
	}()

	if err := run(ctx, *configPath, *seed); err != nil {
		logging.Fatal(log, "pipeline failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, seed uint64) error {
	log := logging.FromContext(ctx)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", mosaic.ErrConfigMismatch, err)
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
	statusServer := metrics.NewServer(cfg.MetricsAddr)
	statusServer.ServeDashboard(cfg.DashboardDir)
	shutdownMetrics, err := statusServer.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()
	defer dumpMetricsSnapshot(reg, cfg.PathToLog)

	scenario, err := diskio.ReadScenarioStats(cfg.PathToGlobals + "/stat.dat")
	if err != nil {
		return err
	}
	if scenario.IsWeightedGraph != cfg.IsWeightedGraph || scenario.IsIndex32Bits != cfg.IsIndex32Bits {
		return fmt.Errorf("%w: config disagrees with stat.dat", mosaic.ErrConfigMismatch)
	}
	n := int(scenario.CountVertices)

	degrees, err := diskio.ReadVertexDegrees(cfg.PathToGlobals+"/vertex_deg.dat", n)
	if err != nil {
		return err
	}
	xref, err := diskio.ReadVertexToTileXRef(
		cfg.PathToGlobals+"/vertex_to_tile_count.dat",
		cfg.PathToGlobals+"/vertex_to_tile_index.dat",
		n,
	)
	if err != nil {
		return err
	}

	program, err := buildProgram(cfg.Algorithm, n)
	if err != nil {
		return err
	}
	initial := initialVector(cfg.Algorithm, n, seed)
	arrays := vertexdomain.NewArrays(n, degrees, initial)

	if len(cfg.PathsToMeta) != cfg.CountEdgeProcessors || len(cfg.PathsToTile) != cfg.CountEdgeProcessors {
		return fmt.Errorf("%w: paths_to_meta/paths_to_tile must have count_edge_processors entries", mosaic.ErrConfigMismatch)
	}

	var topo []vertexdomain.EngineTopology
	var indexMu sync.Mutex
	indexEntries := map[uint64]*mosaic.EdgeBlockIndex{}
	for e := 0; e < cfg.CountEdgeProcessors; e++ {
		tf, err := diskio.Open(
			cfg.PathsToMeta[e]+"/tile_stats.dat",
			cfg.PathsToTile[e]+"/tiles.dat",
			cfg.PathsToMeta[e]+"/meta.dat",
			cfg.IsWeightedGraph,
		)
		if err != nil {
			return err
		}
		defer tf.Close()

		fetcher := &vertexdomain.DirectFetcher{Arrays: arrays, NeedDegrees: true, NeedActive: true}
		eng := edgeengine.New(e, tf, tf, program, fetcher, cfg.CountTileReaders, cfg.CountFollowers, cfg.RingCapacityBytes)

		globalTiles := make([]uint64, len(tf.Stats()))
		for l := range globalTiles {
			globalTiles[l] = uint64(l)*uint64(cfg.CountEdgeProcessors) + uint64(e)
		}
		if err := loadIndices(ctx, tf, globalTiles, cfg.CountIndexReaders, &indexMu, indexEntries); err != nil {
			return err
		}
		topo = append(topo, vertexdomain.EngineTopology{Engine: eng, GlobalTiles: globalTiles})
	}

	store := vertexdomain.NewIndexStore(indexEntries)
	domain := vertexdomain.New(arrays, program, xref, store, topo, cfg.CountGlobalReducers, cfg.CountVertexAppliers, cfg.UseSelectiveScheduling)

	// The split point is a process-wide moving target (spec.md §4.3.2): every
	// Engine's Tile Processors read it to size their per-tile worker count,
	// and the Vertex Domain's Global Reducer 0 is the one that feeds sampled
	// (edges, nanos) pairs back into it, so they all share domain.Split.
	for _, t := range topo {
		t.Engine.Split = domain.Split
	}

	// NewArrays marks every non-zero entry active; for sssp that is every
	// unreached (Inf) vertex, so reset the frontier to the seed alone.
	if cfg.Algorithm == "sssp" {
		arrays.ActiveCurrent.Clear()
		if int(seed) < n {
			arrays.ActiveCurrent.Set(int(seed))
		}
	}

	p := &pipeline.Pipeline{
		Domain:        domain,
		MaxIterations: cfg.MaxIterations,
		Results:       &pipeline.ResultWriter{Dir: cfg.PathToLog},
	}
	defer p.Close()

	res, err := p.Start(ctx)
	if err != nil {
		return err
	}
	logging.Lifecycle(log, "run complete", "run_id", res.RunID, "iterations", res.Iterations, "converged", res.Converged)
	return nil
}

// loadIndices pulls every tile's edge_block_index from tf, bounding
// concurrent disk reads to count_index_readers in-flight at a time
// (spec.md §6 "count_index_readers") via a weighted semaphore rather than
// an unbounded goroutine-per-tile fan-out.
func loadIndices(ctx context.Context, tf *diskio.TileFile, globalTiles []uint64, readers int, mu *sync.Mutex, out map[uint64]*mosaic.EdgeBlockIndex) error {
	if readers < 1 {
		readers = 1
	}
	sem := semaphore.NewWeighted(int64(readers))
	grp, gctx := errgroup.WithContext(ctx)
	for local, global := range globalTiles {
		local, global := local, global
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		grp.Go(func() error {
			defer sem.Release(1)
			idx, err := tf.IndexFor(uint64(local))
			if err != nil {
				return err
			}
			mu.Lock()
			out[global] = idx
			mu.Unlock()
			return nil
		})
	}
	return grp.Wait()
}

// dumpMetricsSnapshot writes a final text-format metrics snapshot next to
// the per-iteration result files, so the status counters survive past
// process exit even though /metrics itself stops serving at shutdown.
func dumpMetricsSnapshot(reg *metrics.Registry, dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	f, err := os.Create(dir + "/metrics.prom")
	if err != nil {
		return
	}
	defer f.Close()
	_ = reg.DumpText(f)
}

func buildProgram(name string, n int) (vertexprogram.Program, error) {
	switch name {
	case "reachability":
		return algorithms.Reachability{}, nil
	case "sssp":
		return algorithms.SSSP{}, nil
	case "pagerank":
		return algorithms.PageRank{Damping: 0.85, VertexCount: uint64(n)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", mosaic.ErrConfigMismatch, name)
	}
}

// initialVector seeds current[] the way spec.md §8's scenarios do: a single
// source vertex active for reachability/sssp, a uniform 1/N mass for
// pagerank.
func initialVector(alg string, n int, seed uint64) []float64 {
	v := make([]float64, n)
	switch alg {
	case "pagerank":
		for i := range v {
			v[i] = 1 / float64(n)
		}
	case "sssp":
		for i := range v {
			v[i] = algorithms.Inf
		}
		if int(seed) < n {
			v[seed] = 0
		}
	default: // reachability
		if int(seed) < n {
			v[seed] = 1
		}
	}
	return v
}

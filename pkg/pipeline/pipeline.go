// Package pipeline drives the global iteration state machine
// INIT -> RUN -> REDUCE_DONE -> APPLY -> SWAP -> (active? RUN : SHUTDOWN)
// (spec.md §4.9), wiring a vertexdomain.Domain to a result-file writer and
// the process's lifecycle logging. Its Start method is grounded on the
// teacher's MapUDFProcessor.Start's context-scoped logger, collapsed onto
// this engine's single-process iteration loop instead of numaflow's
// per-partition forwarder goroutines; Start runs no background goroutines
// and does not own the metrics server.
package pipeline

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sslab-gatech/mosaic-engine/pkg/logging"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexdomain"
)

// ResultWriter persists vertex-output-<i>.data after each iteration's
// apply (spec.md §6 "Result output"). A mid-iteration abort must leave the
// previous iteration's file intact, so every write lands in a temp file
// first and is renamed into place only once fully flushed.
type ResultWriter struct {
	Dir string
}

// Write encodes current as raw little-endian float64[N] to
// <dir>/vertex-output-<iteration>.data.
func (w *ResultWriter) Write(iteration int, current []float64) error {
	if w == nil || w.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("pipeline: creating result dir: %w", err)
	}
	final := filepath.Join(w.Dir, fmt.Sprintf("vertex-output-%d.data", iteration))
	tmp := final + ".tmp"

	buf := make([]byte, 8*len(current))
	for i, v := range current {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("pipeline: writing result file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("pipeline: finalizing result file: %w", err)
	}
	return nil
}

// Pipeline owns one Domain and drives it to convergence or to
// MaxIterations, whichever comes first (spec.md §4.9).
type Pipeline struct {
	Domain        *vertexdomain.Domain
	MaxIterations int
	Results       *ResultWriter
}

// RunResult summarizes one Start call for callers and tests.
type RunResult struct {
	RunID         string
	Iterations    int
	Converged     bool
	FinalCurrent  []float64
}

// Start runs INIT once, then RUN/REDUCE_DONE/APPLY/SWAP iterations until
// either no tile is active anywhere (convergence, spec.md §8 "Convergence
// is ... a clean termination") or MaxIterations is reached. Any
// RunIteration error aborts the run and is returned wrapped with the run's
// correlation id; a result-file write error also stops the run and is
// returned via multierr. Start does not close the engines' rings (see
// Close).
func (p *Pipeline) Start(ctx context.Context) (RunResult, error) {
	runID := uuid.NewString()
	log := logging.FromContext(ctx).With("run_id", runID)
	ctx = logging.WithContext(ctx, log)

	logging.Lifecycle(log, "pipeline starting", "max_iterations", p.MaxIterations)

	var runErr error
	iteration := 0
	converged := false

	for iteration < p.MaxIterations {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		default:
		}
		if runErr != nil {
			break
		}

		active, err := p.Domain.RunIteration(ctx, iteration)
		if err != nil {
			logging.Fatal(log, "iteration failed", zap.Int("iteration", iteration), zap.Error(err))
			runErr = fmt.Errorf("pipeline: run %s iteration %d: %w", runID, iteration, err)
			break
		}

		if writeErr := p.Results.Write(iteration, p.Domain.Arrays.Current); writeErr != nil {
			runErr = multierr.Append(runErr, writeErr)
			break
		}

		logging.Lifecycle(log, "iteration complete", "iteration", iteration, "active", active)
		iteration++

		if !active {
			converged = true
			break
		}
	}

	logging.Lifecycle(log, "pipeline exiting", "iterations", iteration, "converged", converged)

	return RunResult{
		RunID:        runID,
		Iterations:   iteration,
		Converged:    converged,
		FinalCurrent: p.Domain.Arrays.Current,
	}, runErr
}

// Close tears down every edge engine's rings.
func (p *Pipeline) Close() {
	for _, et := range p.Domain.Engines {
		et.Engine.Close()
	}
}

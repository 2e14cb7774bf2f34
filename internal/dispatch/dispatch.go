// Package dispatch runs simulator jobs on a bounded worker pool.
//
// A failing simulation never aborts the run: every job yields an Outcome,
// and a job counts as resolved only when its result file exists once the
// simulator has exited.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cornersweep/internal/corner"
	"cornersweep/internal/simulator"
)

// ErrNoResult marks a job whose simulator exited without writing a result.
var ErrNoResult = errors.New("simulator produced no result")

// DefaultWorkers is twice the host's CPU count.
func DefaultWorkers() int {
	return runtime.NumCPU() * 2
}

// Job is one rendered deck waiting for simulation.
type Job struct {
	Item       corner.WorkItem
	DeckPath   string
	ResultPath string
	LogPath    string
}

// Outcome is the per-job result.
type Outcome struct {
	Job      Job
	Exec     *simulator.ExecutionResult
	Err      error
	Resolved bool
}

// Config controls a Dispatcher.
type Config struct {
	Binary    string
	Arguments []string
	Workers   int
	Timeout   time.Duration
}

// Dispatcher fans jobs out to the simulator.
type Dispatcher struct {
	exec   simulator.Executor
	config Config
	logger *zap.Logger
}

// New creates a dispatcher. Workers <= 0 selects DefaultWorkers.
func New(exec simulator.Executor, config Config, logger *zap.Logger) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{exec: exec, config: config, logger: logger}
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int {
	return d.config.Workers
}

// Dispatch runs every job and returns once all of them have finished.
// Outcomes are returned in job order. Cancelling ctx stops jobs that have
// not started; they come back with ctx's error.
func (d *Dispatcher) Dispatch(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes
	}

	d.logger.Info("Dispatching simulations",
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", d.config.Workers),
		zap.String("binary", d.config.Binary))

	var done atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(d.config.Workers)

	for i := range jobs {
		i := i
		g.Go(func() error {
			outcomes[i] = d.run(ctx, jobs[i])
			n := done.Add(1)
			fields := []zap.Field{
				zap.String("work_item", jobs[i].Item.String()),
				zap.Bool("resolved", outcomes[i].Resolved),
				zap.Int64("done", n),
				zap.Int("total", len(jobs)),
			}
			if res := outcomes[i].Exec; res != nil {
				fields = append(fields, zap.Duration("cpu_time", res.CPUTime))
			}
			d.logger.Debug("Simulation finished", fields...)
			return nil
		})
	}
	_ = g.Wait()

	unresolved := 0
	for _, o := range outcomes {
		if !o.Resolved {
			unresolved++
		}
	}
	d.logger.Info("Dispatch complete",
		zap.Int("jobs", len(jobs)),
		zap.Int("unresolved", unresolved))
	return outcomes
}

func (d *Dispatcher) run(ctx context.Context, job Job) Outcome {
	out := Outcome{Job: job}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	// a result left by an earlier run must not resolve this one
	if err := os.Remove(job.ResultPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		out.Err = fmt.Errorf("failed to remove stale result: %w", err)
		return out
	}

	cmd := simulator.Invocation(d.config.Binary, d.config.Arguments, job.DeckPath, job.LogPath, job.ResultPath)
	cmd.Timeout = d.config.Timeout

	res, err := d.exec.Execute(ctx, cmd)
	out.Exec = res
	if err != nil {
		out.Err = err
		d.logger.Warn("Simulator invocation failed",
			zap.String("deck", job.DeckPath),
			zap.Error(err))
		return out
	}

	if res != nil && (res.IsError() || res.IsNonZeroExit() || res.Killed) {
		d.logger.Warn("Simulator exited abnormally",
			zap.String("deck", job.DeckPath),
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("killed", res.Killed),
			zap.String("kill_reason", res.KillReason),
			zap.String("error", res.Error))
	}

	if _, err := os.Stat(job.ResultPath); err != nil {
		out.Err = fmt.Errorf("%w: %s", ErrNoResult, job.ResultPath)
		return out
	}
	out.Resolved = true
	return out
}

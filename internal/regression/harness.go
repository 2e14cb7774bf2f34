// Package regression runs configured regression suites end to end: it
// enumerates corners, renders decks, dispatches the simulator, normalizes
// results, evaluates errors and aggregates verdicts.
package regression

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"cornersweep/internal/config"
	"cornersweep/internal/corner"
	"cornersweep/internal/deck"
	"cornersweep/internal/dispatch"
	"cornersweep/internal/logging"
	"cornersweep/internal/report"
	"cornersweep/internal/simulator"
)

// ErrUnknownSuite is returned when a requested suite is not configured.
var ErrUnknownSuite = errors.New("unknown suite")

// Harness runs suites from one configuration.
type Harness struct {
	cfg     *config.Config
	exec    simulator.Executor
	loggers *logging.Loggers
	now     func() time.Time
}

// Option customizes a Harness.
type Option func(*Harness)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// New creates a harness. A nil loggers logs nothing.
func New(cfg *config.Config, exec simulator.Executor, loggers *logging.Loggers, opts ...Option) *Harness {
	if loggers == nil {
		loggers = logging.NewLoggers(nil, cfg.Logging)
	}
	h := &Harness{cfg: cfg, exec: exec, loggers: loggers, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DeviceError records a device (or device family) skipped after a data-shape
// error. Its siblings are unaffected.
type DeviceError struct {
	Device string
	Err    error
}

// SuiteResult is the outcome of one suite.
type SuiteResult struct {
	Name       string
	Kind       string
	Dir        string
	Jobs       int
	Unresolved int
	Verdicts   []report.Verdict
	Skipped    []DeviceError
}

// Summary is the outcome of a run.
type Summary struct {
	Name       string
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	Suites     []SuiteResult
}

// Verdicts returns every suite's verdicts in run order.
func (s *Summary) Verdicts() []report.Verdict {
	var out []report.Verdict
	for _, sr := range s.Suites {
		out = append(out, sr.Verdicts...)
	}
	return out
}

// Passed reports whether every verdict of the run passed.
func (s *Summary) Passed() bool {
	v := s.Verdicts()
	return len(v) > 0 && report.AllPassed(v)
}

// Run executes the named suites, or every suite when names is empty.
// Only configuration problems and a failed simulator check return an error;
// failing devices are reported on the Summary.
func (h *Harness) Run(ctx context.Context, names []string) (*Summary, error) {
	suites, err := h.selectSuites(names)
	if err != nil {
		return nil, err
	}

	if err := h.CheckSimulator(ctx); err != nil {
		return nil, err
	}

	started := h.now()
	sum := &Summary{
		Name:      h.cfg.RunName(started),
		Dir:       h.cfg.RunDir(started),
		StartedAt: started,
	}
	if err := os.MkdirAll(sum.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	h.loggers.Root().Info("Starting regression run",
		zap.String("run", sum.Name),
		zap.String("dir", sum.Dir),
		zap.Int("suites", len(suites)))

	for _, s := range suites {
		dir := filepath.Join(sum.Dir, s.Name)
		if h.cfg.Run.Clean {
			if err := os.RemoveAll(dir); err != nil {
				return nil, fmt.Errorf("failed to clean %s: %w", dir, err)
			}
		}

		var res *SuiteResult
		switch s.Kind {
		case config.KindDigital:
			res, err = h.runDigital(ctx, s, dir)
		case config.KindAnalog:
			res, err = h.runAnalog(ctx, s, dir)
		default:
			err = fmt.Errorf("%w: suite %s: unknown kind %q", config.ErrInvalid, s.Name, s.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("suite %s: %w", s.Name, err)
		}
		sum.Suites = append(sum.Suites, *res)
	}

	sum.FinishedAt = h.now()
	if err := report.VerdictsTable(sum.Verdicts()).WriteCSVFile(filepath.Join(sum.Dir, "verdicts.csv")); err != nil {
		return nil, err
	}
	return sum, nil
}

// CheckSimulator verifies the simulator version when simulator.version_match
// is configured.
func (h *Harness) CheckSimulator(ctx context.Context) error {
	sc := h.cfg.Simulator
	if sc.VersionMatch == "" {
		return nil
	}
	out, err := simulator.CheckVersion(ctx, h.exec, sc.Binary, sc.VersionArguments, sc.VersionMatch)
	if err != nil {
		return err
	}
	h.loggers.Get(logging.CategorySimulator).Info("Simulator version verified",
		zap.String("binary", sc.Binary),
		zap.String("version", firstLine(out)))
	return nil
}

func (h *Harness) selectSuites(names []string) ([]*config.SuiteConfig, error) {
	if len(names) == 0 {
		suites := make([]*config.SuiteConfig, len(h.cfg.Suites))
		for i := range h.cfg.Suites {
			suites[i] = &h.cfg.Suites[i]
		}
		return suites, nil
	}
	suites := make([]*config.SuiteConfig, 0, len(names))
	for _, n := range names {
		s, ok := h.cfg.Suite(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSuite, n)
		}
		suites = append(suites, s)
	}
	return suites, nil
}

func (h *Harness) dispatcher() *dispatch.Dispatcher {
	sc := h.cfg.Simulator
	return dispatch.New(h.exec, dispatch.Config{
		Binary:    sc.Binary,
		Arguments: sc.Arguments,
		Workers:   h.cfg.Run.Workers,
		Timeout:   h.cfg.GetSimulatorTimeout(),
	}, h.loggers.Get(logging.CategoryDispatch))
}

func (h *Harness) reportOptions(s *config.SuiteConfig) report.Options {
	return report.Options{
		Suite:     s.Name,
		Threshold: s.Threshold(h.cfg.Policy.PassThreshold),
		Ceiling:   h.cfg.Policy.ErrorCeiling,
	}
}

// finish applies coverage, logs every verdict and returns them.
func (h *Harness) finish(verdicts []report.Verdict, coverage map[string]report.Coverage) []report.Verdict {
	report.ApplyCoverage(verdicts, coverage, report.UnresolvedPolicy(h.cfg.Policy.Unresolved))
	logger := h.loggers.Get(logging.CategoryReport)
	for _, v := range verdicts {
		report.Log(logger, v)
	}
	return verdicts
}

// jobFor lays out the deck, result and log paths of a work item under base.
func jobFor(base string, item corner.WorkItem) dispatch.Job {
	deckPath := deck.Path(filepath.Join(base, "netlists"), item, ".spice")
	return dispatch.Job{
		Item:       item,
		DeckPath:   deckPath,
		ResultPath: deck.Path(filepath.Join(base, "simulated"), item, ".csv"),
		LogPath:    deckPath + ".log",
	}
}

// placeholders are the harness names a deck may reference besides the
// work item's own.
func placeholders(job dispatch.Job, more map[string]string) map[string]string {
	extra := map[string]string{
		"result":     job.ResultPath,
		"result_dir": filepath.Dir(job.ResultPath),
		"log":        job.LogPath,
		"dev_sim":    filepath.Dir(job.ResultPath), // result_dir as named by standard-cell decks
	}
	for k, v := range more {
		extra[k] = v
	}
	return extra
}

// renderJobs writes one deck per job. Items whose deck cannot be rendered
// are reported as failed; if none can be rendered the template is unusable
// and the error is returned.
func renderJobs(r *deck.Renderer, jobs []dispatch.Job, more map[string]string, logger *zap.Logger) (ready []dispatch.Job, failed []dispatch.Job, err error) {
	var lastErr error
	for _, job := range jobs {
		if err := os.MkdirAll(filepath.Dir(job.ResultPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create result directory: %w", err)
		}
		if _, err := r.Write(job.Item, placeholders(job, more)); err != nil {
			if !errors.Is(err, deck.ErrUnknownPlaceholder) {
				return nil, nil, err
			}
			logger.Warn("Deck not rendered", zap.String("work_item", job.Item.String()), zap.Error(err))
			lastErr = err
			failed = append(failed, job)
			continue
		}
		ready = append(ready, job)
	}
	if len(ready) == 0 && lastErr != nil {
		return nil, nil, lastErr
	}
	return ready, failed, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

package regression

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"cornersweep/internal/config"
	"cornersweep/internal/corner"
	"cornersweep/internal/deck"
	"cornersweep/internal/dispatch"
	"cornersweep/internal/evaluate"
	"cornersweep/internal/logging"
	"cornersweep/internal/normalize"
	"cornersweep/internal/report"
	"cornersweep/internal/table"
)

// analogUnit is one device family simulated for one metric.
type analogUnit struct {
	family config.FamilyConfig
	metric config.MetricConfig
	index  int // metric position, selects the measured instance block
	dir    string
	jobs   []dispatch.Job
}

// artifact is a table written into a family directory.
type artifact struct {
	t    *table.Table
	name string
}

// runAnalog sweeps every family variant for every metric and compares the
// pivoted simulator output with the family's measured sheet.
func (h *Harness) runAnalog(ctx context.Context, s *config.SuiteConfig, dir string) (*SuiteResult, error) {
	processes, voltages, temps := s.Axes()
	res := &SuiteResult{Name: s.Name, Kind: s.Kind, Dir: dir}
	normLog := h.loggers.Get(logging.CategoryNormalize)
	dispatchLog := h.loggers.Get(logging.CategoryDispatch)

	sheets := make(map[string]*table.Table, len(s.Families))
	var units []*analogUnit
	var ready []dispatch.Job

	for _, f := range s.Families {
		famDir := filepath.Join(dir, f.Name)
		sheet, err := loadMeasured(f, famDir)
		if err != nil {
			return nil, err
		}

		instances := len(f.Variants) * len(temps) * len(s.Metrics)
		if err := measuredSchema(f, s.Sweep).Validate(sheet, f.Measured, instances); err != nil {
			if !isShapeError(err) {
				return nil, err
			}
			normLog.Error("Device family skipped", zap.String("family", f.Name), zap.Error(err))
			res.Skipped = append(res.Skipped, DeviceError{Device: f.Name, Err: err})
			sheets[f.Name] = nil
		} else {
			sheets[f.Name] = sheet
		}

		for mi, m := range s.Metrics {
			u := &analogUnit{family: f, metric: m, index: mi, dir: filepath.Join(famDir, m.Name)}
			for _, it := range corner.Enumerate(processes, voltages, temps, f.Variants) {
				u.jobs = append(u.jobs, jobFor(u.dir, it))
			}
			units = append(units, u)
			res.Jobs += len(u.jobs)
			if sheets[f.Name] == nil {
				continue
			}

			r, err := deck.Load(s.TemplatePath(f.Name, m.Name, ""), filepath.Join(u.dir, "netlists"))
			if err != nil {
				return nil, err
			}
			ok, _, err := renderJobs(r, u.jobs, map[string]string{"family": f.Name, "metric": m.Name}, dispatchLog)
			if err != nil {
				return nil, err
			}
			ready = append(ready, ok...)
		}
	}

	outcomes := h.dispatcher().Dispatch(ctx, ready)
	resolved := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		if o.Resolved {
			resolved[o.Job.ResultPath] = true
		}
	}

	for _, u := range units {
		sheet := sheets[u.family.Name]
		if sheet == nil {
			res.Verdicts = append(res.Verdicts, h.finish(
				report.Aggregate(u.metric.Name, u.family.Variants, nil, h.reportOptions(s)),
				coverageFor(u, nil))...)
			continue
		}
		verdicts, unresolved, err := h.evaluateUnit(s, u, sheet, resolved, temps, res)
		if err != nil {
			return nil, err
		}
		res.Unresolved += unresolved
		res.Verdicts = append(res.Verdicts, verdicts...)
	}
	return res, nil
}

// evaluateUnit normalizes, evaluates and reports one family and metric.
func (h *Harness) evaluateUnit(s *config.SuiteConfig, u *analogUnit, sheet *table.Table, resolved map[string]bool, temps []string, res *SuiteResult) ([]report.Verdict, int, error) {
	normLog := h.loggers.Get(logging.CategoryNormalize)
	evalLog := h.loggers.Get(logging.CategoryEvaluate)

	pol, _ := normalize.PolarityFor(u.family.PolarityKind())
	spec := normalize.PivotSpec{
		Index:   s.Sweep.Index,
		Columns: s.Sweep.Columns,
		Value:   pol.ProbeHeader(u.metric.Probe),
		Keys:    s.Sweep.Keys,
		Nodes:   s.Sweep.Nodes,
	}
	schema := measuredSchema(u.family, s.Sweep)

	unresolved := make(map[string]int)
	bad := make(map[string]bool)
	var simulated, measured []normalize.Point

	for _, job := range u.jobs {
		variant := job.Item.Device
		if !resolved[job.ResultPath] {
			unresolved[variant]++
			continue
		}
		if bad[variant] {
			continue
		}

		sim, meas, err := h.normalizeJob(job, spec, pol, schema, sheet, u, temps, len(s.Metrics))
		if err != nil {
			if !isShapeError(err) {
				return nil, 0, err
			}
			normLog.Error("Device skipped",
				zap.String("device", variant),
				zap.String("metric", u.metric.Name),
				zap.Error(err))
			res.Skipped = append(res.Skipped, DeviceError{Device: variant, Err: err})
			bad[variant] = true
			continue
		}
		simulated = append(simulated, sim...)
		measured = append(measured, meas...)
	}
	simulated = withoutDevices(simulated, bad)
	measured = withoutDevices(measured, bad)

	famDir := filepath.Dir(u.dir)
	prefix := u.family.Name + "_" + u.metric.Name
	writes := []artifact{
		{normalize.PointsTable(measured), prefix + "_measured.csv"},
		{normalize.PointsTable(simulated), prefix + "_simulated.csv"},
		{normalize.SweepsTable(normalize.Sweeps(measured), s.Sweep.Index), prefix + "_sweeps.csv"},
	}

	records, groups := evaluate.Evaluate(simulated, measured, evaluate.Options{
		Floor:     h.cfg.Policy.CurrentFloor,
		Unmatched: evaluate.UnmatchedPolicy(h.cfg.Policy.Unmatched),
	})
	for _, g := range groups {
		evalLog.Debug("Corner evaluated",
			zap.String("device", g.Device),
			zap.String("metric", u.metric.Name),
			zap.String("corner", g.Corner.String()),
			zap.Float64("rms_error", g.Error),
			zap.Int("rows", g.Rows))
	}
	writes = append(writes,
		artifact{evaluate.RecordsTable(records), u.metric.Name + "_error_analysis.csv"},
		artifact{evaluate.GroupsTable(groups), u.metric.Name + "_final_error_analysis.csv"},
	)
	for _, w := range writes {
		if err := w.t.WriteCSVFile(filepath.Join(famDir, w.name)); err != nil {
			return nil, 0, err
		}
	}

	if h.cfg.Report.Charts && len(groups) > 0 {
		title := fmt.Sprintf("%s %s", u.family.Name, u.metric.Name)
		threshold := s.Threshold(h.cfg.Policy.PassThreshold)
		if err := report.WriteChart(filepath.Join(famDir, prefix+"_rms.html"), title, groups, threshold); err != nil {
			h.loggers.Get(logging.CategoryReport).Warn("Chart not written", zap.String("family", u.family.Name), zap.Error(err))
		}
	}

	total := 0
	for _, n := range unresolved {
		total += n
	}
	verdicts := report.Aggregate(u.metric.Name, u.family.Variants, groups, h.reportOptions(s))
	return h.finish(verdicts, coverageFor(u, unresolved)), total, nil
}

// normalizeJob pivots one result and extracts the matching measured instance.
func (h *Harness) normalizeJob(job dispatch.Job, spec normalize.PivotSpec, pol normalize.Polarity, schema normalize.Schema,
	sheet *table.Table, u *analogUnit, temps []string, metrics int) ([]normalize.Point, []normalize.Point, error) {
	raw, err := table.ReadCSVFile(job.ResultPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", normalize.ErrShape, err)
	}
	sim, err := normalize.Pivot(raw, spec, pol, job.Item)
	if err != nil {
		return nil, nil, err
	}
	pivotPath := strings.TrimSuffix(job.ResultPath, ".csv") + "_pivot.csv"
	if err := normalize.WideTable(sim, spec.Index, spec.Nodes).WriteCSVFile(pivotPath); err != nil {
		return nil, nil, err
	}

	ordinal := corner.MeasuredOrdinal(job.Item, u.family.Variants, temps)
	if ordinal < 0 {
		return nil, nil, fmt.Errorf("%w: %s has no measured instance", normalize.ErrShape, job.Item)
	}
	meas, err := schema.Extract(sheet, ordinal*metrics+u.index, job.Item)
	if err != nil {
		return nil, nil, err
	}
	return sim, meas, nil
}

// loadMeasured reads a family's measured sheet, drops repeated rows and keeps
// a copy next to the family's results.
func loadMeasured(f config.FamilyConfig, famDir string) (*table.Table, error) {
	sheet, err := table.ReadCSVFile(f.Measured)
	if err != nil {
		return nil, fmt.Errorf("measured sheet for %s: %w", f.Name, err)
	}
	sheet.DropDuplicates()
	if err := sheet.WriteCSVFile(filepath.Join(famDir, f.Name+"_measured.csv")); err != nil {
		return nil, err
	}
	return sheet, nil
}

func measuredSchema(f config.FamilyConfig, sw config.SweepConfig) normalize.Schema {
	layout := f.Layout
	if layout == "" {
		layout = normalize.LayoutSuffix
	}
	return normalize.Schema{
		Layout:  layout,
		Index:   f.Index,
		Columns: f.Columns,
		Nodes:   sw.Nodes,
		Offset:  f.Offset,
	}
}

func coverageFor(u *analogUnit, unresolved map[string]int) map[string]report.Coverage {
	expected := make(map[string]int, len(u.family.Variants))
	for _, j := range u.jobs {
		expected[j.Item.Device]++
	}
	cov := make(map[string]report.Coverage, len(expected))
	for dev, n := range expected {
		cov[dev] = report.Coverage{Expected: n, Unresolved: unresolved[dev]}
	}
	return cov
}

func withoutDevices(points []normalize.Point, bad map[string]bool) []normalize.Point {
	if len(bad) == 0 {
		return points
	}
	kept := points[:0]
	for _, p := range points {
		if !bad[p.Device] {
			kept = append(kept, p)
		}
	}
	return kept
}

func isShapeError(err error) bool {
	var se *normalize.SchemaError
	return errors.Is(err, normalize.ErrShape) || errors.As(err, &se)
}

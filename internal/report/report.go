// Package report rolls group errors into per-device verdicts and writes the
// run's summary artifacts.
package report

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cornersweep/internal/evaluate"
	"cornersweep/internal/table"
)

// Defaults used by the foundry regression scripts.
const (
	DefaultThreshold = 5.0
	DefaultCeiling   = 100.0
)

// UnresolvedPolicy decides how work items whose simulation produced no
// result affect a verdict.
type UnresolvedPolicy string

const (
	// UnresolvedIgnore aggregates over whatever results exist.
	UnresolvedIgnore UnresolvedPolicy = "ignore"
	// UnresolvedFail fails any device with an unresolved work item.
	UnresolvedFail UnresolvedPolicy = "fail"
)

// Options controls Aggregate.
type Options struct {
	Suite     string
	Threshold float64 // inclusive: max <= Threshold passes
	Ceiling   float64 // errors above are reported as Ceiling
}

// Verdict is the final outcome for one device and metric.
type Verdict struct {
	Suite  string
	Device string
	Metric string

	Min  float64
	Mean float64
	Max  float64
	Pass bool

	Groups     int // corners that produced a result
	Expected   int // corners that were dispatched
	Unresolved int // corners whose simulation produced nothing
}

// Status renders PASS or FAIL.
func (v Verdict) Status() string {
	if v.Pass {
		return "PASS"
	}
	return "FAIL"
}

// Coverage counts the work items behind a device's groups.
type Coverage struct {
	Expected   int
	Unresolved int
}

// Aggregate builds one verdict per device, in the order devices are given.
// A device without any group does not pass.
func Aggregate(metric string, devices []string, groups []evaluate.Group, opts Options) []Verdict {
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultCeiling
	}
	byDevice := make(map[string][]float64, len(devices))
	for _, g := range groups {
		byDevice[g.Device] = append(byDevice[g.Device], g.Error)
	}

	verdicts := make([]Verdict, 0, len(devices))
	for _, dev := range devices {
		errs := byDevice[dev]
		v := Verdict{Suite: opts.Suite, Device: dev, Metric: metric, Groups: len(errs)}
		if len(errs) > 0 {
			v.Min = saturate(floats.Min(errs), opts.Ceiling)
			v.Max = saturate(floats.Max(errs), opts.Ceiling)
			v.Mean = saturate(stat.Mean(errs, nil), opts.Ceiling)
			v.Pass = v.Max <= opts.Threshold
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}

func saturate(v, ceiling float64) float64 {
	if math.IsNaN(v) || v > ceiling {
		return ceiling
	}
	return v
}

// ApplyCoverage records how many work items each verdict was built from and
// enforces the unresolved policy.
func ApplyCoverage(verdicts []Verdict, coverage map[string]Coverage, policy UnresolvedPolicy) {
	for i := range verdicts {
		c, ok := coverage[verdicts[i].Device]
		if !ok {
			continue
		}
		verdicts[i].Expected = c.Expected
		verdicts[i].Unresolved = c.Unresolved
		if policy == UnresolvedFail && c.Unresolved > 0 {
			verdicts[i].Pass = false
		}
	}
}

// Log writes the per-device summary lines.
func Log(logger *zap.Logger, v Verdict) {
	fields := []zap.Field{
		zap.String("suite", v.Suite),
		zap.String("device", v.Device),
		zap.String("metric", v.Metric),
		zap.String("min_error", fmt.Sprintf("%.2f", v.Min)),
		zap.String("max_error", fmt.Sprintf("%.2f", v.Max)),
		zap.String("mean_error", fmt.Sprintf("%.2f", v.Mean)),
		zap.Int("corners", v.Groups),
		zap.Int("unresolved", v.Unresolved),
	}
	if v.Pass {
		logger.Info(fmt.Sprintf("Device %s %s has passed regression", v.Device, v.Metric), fields...)
		return
	}
	if v.Groups == 0 {
		logger.Error(fmt.Sprintf("Device %s %s has no simulated results", v.Device, v.Metric), fields...)
		return
	}
	logger.Error(fmt.Sprintf("Device %s %s has failed regression, needs more analysis", v.Device, v.Metric), fields...)
}

// VerdictsTable renders verdicts for verdicts.csv.
func VerdictsTable(verdicts []Verdict) *table.Table {
	t := table.New("suite", "device", "metric", "min_error", "mean_error", "max_error",
		"status", "corners", "expected", "unresolved")
	for _, v := range verdicts {
		t.Append(v.Suite, v.Device, v.Metric,
			fmt.Sprintf("%.2f", v.Min), fmt.Sprintf("%.2f", v.Mean), fmt.Sprintf("%.2f", v.Max),
			v.Status(), fmt.Sprint(v.Groups), fmt.Sprint(v.Expected), fmt.Sprint(v.Unresolved))
	}
	return t
}

// FunctionalTable lists, per digital corner, whether the truth table matched.
func FunctionalTable(groups []evaluate.Group) *table.Table {
	t := table.New("device", "process", "voltage", "temperature", "functional", "mismatch_percent")
	for _, g := range groups {
		t.Append(g.Device, g.Corner.Process, g.Corner.Voltage, g.Corner.Temperature,
			fmt.Sprint(g.Error == 0), fmt.Sprintf("%.2f", g.Error))
	}
	return t
}

// AllPassed reports whether every verdict passed.
func AllPassed(verdicts []Verdict) bool {
	for _, v := range verdicts {
		if !v.Pass {
			return false
		}
	}
	return true
}

// Package evaluate compares simulated points against measured ones.
//
// Analog comparisons produce a relative percentage error per point, a
// composite error per bias row and an RMS error per (device, corner) group.
// Digital comparisons check truth tables for exact equality.
package evaluate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"cornersweep/internal/corner"
	"cornersweep/internal/normalize"
)

// DefaultFloor is the clamp applied to current-like quantities.
const DefaultFloor = 5e-12

// UnmatchedPolicy decides what a measured point without a simulated
// counterpart contributes.
type UnmatchedPolicy string

const (
	// UnmatchedZero fills the simulated side with 0, giving a 100% step error.
	UnmatchedZero UnmatchedPolicy = "zero"
	// UnmatchedDrop leaves the point out of every aggregate.
	UnmatchedDrop UnmatchedPolicy = "drop"
)

// Options controls Evaluate.
type Options struct {
	Floor     float64
	Unmatched UnmatchedPolicy
}

// DefaultOptions mirrors the foundry regression scripts.
func DefaultOptions() Options {
	return Options{Floor: DefaultFloor, Unmatched: UnmatchedZero}
}

// ErrorRecord is the comparison of one measured point.
type ErrorRecord struct {
	Device    string
	Corner    corner.Spec
	Bias      float64
	Node      string
	Measured  float64 // after clamping
	Simulated float64 // after clamping, 0 when unmatched
	Matched   bool
	StepError float64 // |sim - meas| * 100 / meas
	Composite float64 // mean step error of the bias row
	RMS       float64 // RMS of composites in the (device, corner) group
}

// Group is the aggregate error of one device at one corner.
type Group struct {
	Device string
	Corner corner.Spec
	Error  float64
	Rows   int
}

type rowKey struct {
	device string
	corner corner.Spec
	bias   string
}

type groupKey struct {
	device string
	corner corner.Spec
}

// Clamp raises v to floor.
func Clamp(v, floor float64) float64 {
	return math.Max(v, floor)
}

// RelativeError returns |sim - meas| * 100 / meas.
func RelativeError(sim, meas float64) float64 {
	return math.Abs(sim-meas) * 100 / meas
}

// Evaluate joins simulated points onto measured ones by (device, corner,
// bias, node). Simulated points without a measured counterpart are dropped.
// Groups come back in order of first appearance in measured.
func Evaluate(simulated, measured []normalize.Point, opts Options) ([]ErrorRecord, []Group) {
	if opts.Unmatched == "" {
		opts.Unmatched = UnmatchedZero
	}

	sim := make(map[normalize.Key]float64, len(simulated))
	for _, p := range simulated {
		k := p.Key()
		if _, dup := sim[k]; !dup {
			sim[k] = p.Value
		}
	}

	records := make([]ErrorRecord, 0, len(measured))
	for _, m := range measured {
		rec := ErrorRecord{
			Device:   m.Device,
			Corner:   m.Corner,
			Bias:     m.Bias,
			Node:     m.Node,
			Measured: Clamp(m.Value, opts.Floor),
		}
		if s, ok := sim[m.Key()]; ok {
			rec.Simulated = Clamp(s, opts.Floor)
			rec.Matched = true
		} else if opts.Unmatched == UnmatchedDrop {
			continue
		}
		rec.StepError = RelativeError(rec.Simulated, rec.Measured)
		records = append(records, rec)
	}

	// composite per bias row
	var rows []rowKey
	steps := make(map[rowKey][]float64)
	for _, r := range records {
		k := rowKey{r.Device, r.Corner, normalize.BiasKey(r.Bias)}
		if _, ok := steps[k]; !ok {
			rows = append(rows, k)
		}
		steps[k] = append(steps[k], r.StepError)
	}
	composite := make(map[rowKey]float64, len(rows))
	for _, k := range rows {
		composite[k] = stat.Mean(steps[k], nil)
	}

	// RMS per group over every row
	var order []groupKey
	squares := make(map[groupKey][]float64)
	for _, k := range rows {
		g := groupKey{k.device, k.corner}
		if _, ok := squares[g]; !ok {
			order = append(order, g)
		}
		c := composite[k]
		squares[g] = append(squares[g], c*c)
	}
	groups := make([]Group, 0, len(order))
	rms := make(map[groupKey]float64, len(order))
	for _, g := range order {
		v := math.Sqrt(stat.Mean(squares[g], nil))
		rms[g] = v
		groups = append(groups, Group{Device: g.device, Corner: g.corner, Error: v, Rows: len(squares[g])})
	}

	for i := range records {
		r := &records[i]
		r.Composite = composite[rowKey{r.Device, r.Corner, normalize.BiasKey(r.Bias)}]
		r.RMS = rms[groupKey{r.Device, r.Corner}]
	}
	return records, groups
}

package evaluate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cornersweep/internal/corner"
	"cornersweep/internal/normalize"
)

var c25 = corner.Spec{Process: "typical", Temperature: "25"}

func pt(bias float64, node string, v float64) normalize.Point {
	return normalize.Point{Device: "npn_a", Corner: c25, Bias: bias, Node: node, Value: v}
}

func TestEvaluateBelowFloorIsZeroError(t *testing.T) {
	records, groups := Evaluate(
		[]normalize.Point{pt(0.3, "vcp1", 1e-15)},
		[]normalize.Point{pt(0.3, "vcp1", 1e-15)},
		DefaultOptions(),
	)
	require.Len(t, records, 1)
	assert.Equal(t, DefaultFloor, records[0].Measured)
	assert.Equal(t, DefaultFloor, records[0].Simulated)
	assert.Equal(t, 0.0, records[0].StepError)
	assert.False(t, math.IsNaN(records[0].StepError))
	require.Len(t, groups, 1)
	assert.Equal(t, 0.0, groups[0].Error)
}

func TestEvaluateUnmatchedMeasuredIsZeroFilled(t *testing.T) {
	measured := []normalize.Point{pt(0.3, "vcp1", 2e-9)}
	records, _ := Evaluate(nil, measured, DefaultOptions())
	require.Len(t, records, 1)

	m := Clamp(2e-9, DefaultFloor)
	want := math.Abs(0-m) * 100 / m
	assert.False(t, records[0].Matched)
	assert.Equal(t, 0.0, records[0].Simulated)
	assert.InDelta(t, want, records[0].Composite, 1e-9)
	assert.InDelta(t, 100.0, records[0].Composite, 1e-9)
}

func TestEvaluateUnmatchedDrop(t *testing.T) {
	opts := DefaultOptions()
	opts.Unmatched = UnmatchedDrop
	records, groups := Evaluate(nil, []normalize.Point{pt(0.3, "vcp1", 2e-9)}, opts)
	assert.Empty(t, records)
	assert.Empty(t, groups)
}

func TestEvaluateDropsUnmatchedSimulated(t *testing.T) {
	sim := []normalize.Point{pt(0.3, "vcp1", 1e-6), pt(0.9, "vcp1", 1e-6)}
	meas := []normalize.Point{pt(0.3, "vcp1", 1e-6)}
	records, _ := Evaluate(sim, meas, DefaultOptions())
	require.Len(t, records, 1)
	assert.Equal(t, 0.3, records[0].Bias)
}

func TestEvaluateCompositeAndRMS(t *testing.T) {
	// row 0.3: step errors 10, 20, 30 -> composite 20
	// row 0.4: step errors 0, 0, 0  -> composite 0
	meas := []normalize.Point{
		pt(0.3, "vcp1", 1e-6), pt(0.3, "vcp2", 1e-6), pt(0.3, "vcp3", 1e-6),
		pt(0.4, "vcp1", 1e-6), pt(0.4, "vcp2", 1e-6), pt(0.4, "vcp3", 1e-6),
	}
	sim := []normalize.Point{
		pt(0.3, "vcp1", 1.1e-6), pt(0.3, "vcp2", 0.8e-6), pt(0.3, "vcp3", 1.3e-6),
		pt(0.4, "vcp1", 1e-6), pt(0.4, "vcp2", 1e-6), pt(0.4, "vcp3", 1e-6),
	}
	records, groups := Evaluate(sim, meas, DefaultOptions())
	require.Len(t, records, 6)

	assert.InDelta(t, 20.0, records[0].Composite, 1e-6)
	assert.InDelta(t, 0.0, records[3].Composite, 1e-6)

	// RMS over both rows, not just the first
	wantRMS := math.Sqrt((20.0*20.0 + 0) / 2)
	require.Len(t, groups, 1)
	assert.InDelta(t, wantRMS, groups[0].Error, 1e-6)
	assert.Equal(t, 2, groups[0].Rows)
	for _, r := range records {
		assert.InDelta(t, wantRMS, r.RMS, 1e-6)
	}
}

func TestEvaluateBiasFormatsAlign(t *testing.T) {
	sim := []normalize.Point{pt(3.000000e-01, "vcp1", 1e-6)}
	meas := []normalize.Point{pt(0.1+0.2, "vcp1", 1e-6)}
	records, _ := Evaluate(sim, meas, DefaultOptions())
	require.Len(t, records, 1)
	assert.True(t, records[0].Matched)
}

func TestEvaluateGroupsPerCorner(t *testing.T) {
	cold := corner.Spec{Process: "typical", Temperature: "-40"}
	meas := []normalize.Point{pt(0.3, "vcp1", 1e-6), {Device: "npn_a", Corner: cold, Bias: 0.3, Node: "vcp1", Value: 1e-6}}
	sim := []normalize.Point{pt(0.3, "vcp1", 1e-6), {Device: "npn_a", Corner: cold, Bias: 0.3, Node: "vcp1", Value: 1.5e-6}}

	_, groups := Evaluate(sim, meas, DefaultOptions())
	require.Len(t, groups, 2)
	assert.Equal(t, 0.0, groups[0].Error)
	assert.InDelta(t, 50.0, groups[1].Error, 1e-6)
}

func TestTruthTable(t *testing.T) {
	expected := [][]int{{0, 1}, {1, 0}}

	res := TruthTable(expected, [][]int{{0, 1}, {1, 0}})
	assert.True(t, res.Match())
	assert.Equal(t, 0.0, res.ErrorPercent())

	res = TruthTable(expected, [][]int{{0, 1}, {1, 1}})
	assert.False(t, res.Match())
	assert.Equal(t, 50.0, res.ErrorPercent())

	res = TruthTable(expected, [][]int{{0, 1}})
	assert.Equal(t, 1, res.Mismatches)
}

func TestRecordsTable(t *testing.T) {
	records, groups := Evaluate([]normalize.Point{pt(0.3, "vcp1", 1e-6)}, []normalize.Point{pt(0.3, "vcp1", 1e-6)}, DefaultOptions())
	rt := RecordsTable(records)
	require.Equal(t, 1, rt.Len())
	assert.Equal(t, "npn_a", rt.Rows[0][0])
	assert.Equal(t, "true", rt.Rows[0][rt.Index("matched")])

	gt := GroupsTable(groups)
	assert.Equal(t, "0", gt.Rows[0][gt.Index("rms_error")])
}

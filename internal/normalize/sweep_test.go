package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cornersweep/internal/corner"
)

func TestSweeps(t *testing.T) {
	c25 := corner.Spec{Temperature: "25"}
	c40 := corner.Spec{Temperature: "-40"}
	points := []Point{
		{Device: "npn", Corner: c25, Bias: 0.25, Node: "vcp1", Value: 1},
		{Device: "npn", Corner: c25, Bias: 0.25, Node: "vcp2", Value: 2},
		{Device: "npn", Corner: c25, Bias: 0.5, Node: "vcp1", Value: 5},
		{Device: "npn", Corner: c25, Bias: 1, Node: "vcp1", Value: 4},
		{Device: "npn", Corner: c40, Bias: 0.3, Node: "vcp1", Value: 7},
	}

	sweeps := Sweeps(points)
	require.Len(t, sweeps, 2)

	s := sweeps[0]
	assert.Equal(t, c25, s.Corner)
	assert.Equal(t, 0.25, s.Min)
	assert.Equal(t, 1.0, s.Max)
	assert.Equal(t, 0.5, s.Step)
	assert.Equal(t, 5.0, s.MaxValue)
	assert.Equal(t, 4, s.Points)

	assert.Equal(t, 0.0, sweeps[1].Step)
	assert.Equal(t, 7.0, sweeps[1].MaxValue)

	tbl := SweepsTable(sweeps, "V(B)")
	assert.Equal(t, "V(B) 0.25 1 0.5", tbl.Rows[0][4])
}

func TestBiasKey(t *testing.T) {
	assert.Equal(t, BiasKey(0.3), BiasKey(3.000000e-01))
	assert.Equal(t, "0", BiasKey(-0.0))
	assert.Equal(t, BiasKey(0.1+0.2), BiasKey(0.3))
}

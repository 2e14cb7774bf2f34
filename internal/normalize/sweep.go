package normalize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"cornersweep/internal/corner"
	"cornersweep/internal/table"
)

// Sweep summarises the swept variable of one device at one corner.
type Sweep struct {
	Device   string
	Corner   corner.Spec
	Min      float64
	Max      float64
	Step     float64 // largest gap between successive bias values
	MaxValue float64 // largest dependent value observed
	Points   int
}

type sweepKey struct {
	device string
	corner corner.Spec
}

// Sweeps derives one summary per (device, corner) from normalized points, in
// order of first appearance.
func Sweeps(points []Point) []Sweep {
	var order []sweepKey
	biases := make(map[sweepKey][]float64)
	values := make(map[sweepKey][]float64)
	for _, p := range points {
		k := sweepKey{p.Device, p.Corner}
		if _, ok := values[k]; !ok {
			order = append(order, k)
		}
		b := biases[k]
		if len(b) == 0 || BiasKey(b[len(b)-1]) != BiasKey(p.Bias) {
			biases[k] = append(b, p.Bias)
		}
		values[k] = append(values[k], p.Value)
	}

	out := make([]Sweep, 0, len(order))
	for _, k := range order {
		b := biases[k]
		step := 0.0
		for i := 1; i < len(b); i++ {
			step = math.Max(step, math.Abs(b[i]-b[i-1]))
		}
		out = append(out, Sweep{
			Device:   k.device,
			Corner:   k.corner,
			Min:      floats.Min(b),
			Max:      floats.Max(b),
			Step:     step,
			MaxValue: floats.Max(values[k]),
			Points:   len(values[k]),
		})
	}
	return out
}

// SweepsTable renders sweeps with a "sweep" column such as "V(B) 0.3 1.2 0.05".
func SweepsTable(sweeps []Sweep, variable string) *table.Table {
	t := table.New("device", "process", "voltage", "temperature", "sweep", "max_value", "points")
	for _, s := range sweeps {
		t.Append(s.Device, s.Corner.Process, s.Corner.Voltage, s.Corner.Temperature,
			fmt.Sprintf("%s %s %s %s", variable, table.FormatFloat(s.Min), table.FormatFloat(s.Max), table.FormatFloat(s.Step)),
			table.FormatFloat(s.MaxValue), fmt.Sprint(s.Points))
	}
	return t
}

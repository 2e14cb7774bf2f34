// Package normalize reshapes simulator output and foundry measurement sheets
// into one canonical long-form table: a row per (device, corner, bias, node).
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"cornersweep/internal/corner"
	"cornersweep/internal/table"
)

// ErrShape is returned when a table does not have the layout it was declared with.
var ErrShape = errors.New("unexpected table shape")

// SchemaError lists declared columns a table does not carry.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: missing columns %s", e.Source, quoteAll(e.Missing))
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, ", ")
}

// Point is one observation in canonical long form.
type Point struct {
	Device string
	Corner corner.Spec
	Bias   float64 // driving variable, e.g. base voltage
	Node   string  // swept node label, e.g. vcp1
	Value  float64
}

// Key identifies a point for joining. Bias is rounded so that "0.3" and
// "3.000000e-01" compare equal.
type Key struct {
	Device string
	Corner corner.Spec
	Bias   string
	Node   string
}

// Key returns the join key of the point.
func (p Point) Key() Key {
	return Key{Device: p.Device, Corner: p.Corner, Bias: BiasKey(p.Bias), Node: p.Node}
}

// BiasKey formats a bias value at nano resolution.
func BiasKey(v float64) string {
	r := math.Round(v*1e9) / 1e9
	if r == 0 {
		r = 0 // drop negative zero
	}
	return table.FormatFloat(r)
}

// PointsHeader is the column layout of canonical CSV artifacts.
var PointsHeader = []string{"device", "process", "voltage", "temperature", "bias", "node", "value"}

// PointsTable renders points in canonical long form.
func PointsTable(points []Point) *table.Table {
	t := table.New(PointsHeader...)
	for _, p := range points {
		t.Append(p.Device, p.Corner.Process, p.Corner.Voltage, p.Corner.Temperature,
			table.FormatFloat(p.Bias), p.Node, table.FormatFloat(p.Value))
	}
	return t
}

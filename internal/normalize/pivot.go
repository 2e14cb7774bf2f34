package normalize

import (
	"fmt"
	"math"
	"sort"

	"cornersweep/internal/corner"
	"cornersweep/internal/table"
)

// PivotSpec declares how a simulator's long output is pivoted: one row per
// Index value, one column per Columns value, cells taken from Value.
type PivotSpec struct {
	Index   string    // e.g. V(B)
	Columns string    // e.g. V(C)
	Value   string    // e.g. {-I(VCP)}
	Keys    []float64 // canonical pivot keys, e.g. 1, 2, 3
	Nodes   []string  // labels for Keys, e.g. vcp1, vcp2, vcp3
}

// Pivot reshapes one work item's simulator result into points. Pivot keys
// not declared in spec are ignored; a repeated (index, key) pair is a shape error.
func Pivot(raw *table.Table, spec PivotSpec, pol Polarity, item corner.WorkItem) ([]Point, error) {
	if len(spec.Keys) != len(spec.Nodes) {
		return nil, fmt.Errorf("%w: %d pivot keys for %d nodes", ErrShape, len(spec.Keys), len(spec.Nodes))
	}
	var missing []string
	for _, c := range []string{spec.Index, spec.Columns, spec.Value} {
		if raw.Index(c) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Source: "simulated result for " + item.Device, Missing: missing}
	}
	ii, ci, vi := raw.Index(spec.Index), raw.Index(spec.Columns), raw.Index(spec.Value)

	cells := make(map[string][]float64)
	biases := make(map[string]float64)
	var order []string
	for r := range raw.Rows {
		idx, err := raw.Float(r, ii)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d %s: %v", ErrShape, r, spec.Index, err)
		}
		col, err := raw.Float(r, ci)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d %s: %v", ErrShape, r, spec.Columns, err)
		}
		node := nodeFor(col*pol.KeySign, spec.Keys)
		if node < 0 {
			continue
		}
		val, err := raw.Float(r, vi)
		if err != nil {
			continue // NaN cell
		}

		k := BiasKey(idx)
		row, ok := cells[k]
		if !ok {
			row = make([]float64, len(spec.Nodes))
			for i := range row {
				row[i] = math.NaN()
			}
			cells[k] = row
			biases[k] = idx
			order = append(order, k)
		}
		if !math.IsNaN(row[node]) {
			return nil, fmt.Errorf("%w: duplicate entry for %s=%s %s=%g", ErrShape, spec.Index, k, spec.Columns, col)
		}
		row[node] = val
	}

	sort.SliceStable(order, func(a, b int) bool { return biases[order[a]] < biases[order[b]] })
	if pol.Reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	points := make([]Point, 0, len(order)*len(spec.Nodes))
	for _, k := range order {
		for n, v := range cells[k] {
			if math.IsNaN(v) {
				continue
			}
			points = append(points, Point{
				Device: item.Device,
				Corner: item.Corner,
				Bias:   biases[k] * pol.BiasSign,
				Node:   spec.Nodes[n],
				Value:  v,
			})
		}
	}
	return points, nil
}

func nodeFor(key float64, keys []float64) int {
	for i, k := range keys {
		if math.Abs(key-k) < 1e-9 {
			return i
		}
	}
	return -1
}

// WideTable renders pivoted points back into the simulator's wide layout,
// one row per bias and one column per node.
func WideTable(points []Point, index string, nodes []string) *table.Table {
	t := table.New(append([]string{index}, nodes...)...)
	rows := make(map[string]int)
	for _, p := range points {
		k := BiasKey(p.Bias)
		r, ok := rows[k]
		if !ok {
			t.Append(table.FormatFloat(p.Bias))
			r = t.Len() - 1
			rows[k] = r
		}
		for i, n := range nodes {
			if n == p.Node {
				t.Rows[r][i+1] = table.FormatFloat(p.Value)
			}
		}
	}
	return t
}

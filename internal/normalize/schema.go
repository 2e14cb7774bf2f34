package normalize

import (
	"fmt"
	"strconv"

	"cornersweep/internal/corner"
	"cornersweep/internal/table"
)

// Measured sheet layouts.
const (
	// LayoutSuffix repeats the bias columns with an incrementing ".N" suffix
	// for every measured instance: "vcp =1", "vcp =1.1", "vcp =1.2", ...
	LayoutSuffix = "suffix"
	// LayoutBlock repeats a fixed-width block [index, bias columns...] per instance.
	LayoutBlock = "block"
)

// Schema declares where a measured sheet keeps each instance's values.
// Column names are never discovered by pattern; every resolved name must exist.
type Schema struct {
	Layout  string   // LayoutSuffix or LayoutBlock
	Index   string   // driving variable column, e.g. "vbp "
	Columns []string // bias column base names, e.g. "vcp =1", "vcp =2", "vcp =3"
	Nodes   []string // canonical labels for Columns, e.g. vcp1, vcp2, vcp3
	Offset  int      // leading columns to skip (block layout)
}

// Width is the number of raw columns one block layout instance spans.
func (s Schema) Width() int { return 1 + len(s.Columns) }

// Resolve returns the raw index and bias column names for instance n. For
// the suffix layout instance 0 carries no suffix. For the block layout the
// names are positional.
func (s Schema) Resolve(raw *table.Table, n int) (string, []string) {
	cols := make([]string, len(s.Columns))
	if s.Layout == LayoutBlock {
		base := s.Offset + n*s.Width()
		index := ""
		if base < len(raw.Header) {
			index = raw.Header[base]
		}
		for i := range s.Columns {
			if c := base + 1 + i; c < len(raw.Header) {
				cols[i] = raw.Header[c]
			}
		}
		return index, cols
	}
	for i, c := range s.Columns {
		if n == 0 {
			cols[i] = c
		} else {
			cols[i] = c + "." + strconv.Itoa(n)
		}
	}
	return s.Index, cols
}

// Validate checks that every instance 0..instances-1 resolves to existing
// columns. All missing names are reported at once.
func (s Schema) Validate(raw *table.Table, source string, instances int) error {
	if len(s.Columns) == 0 || len(s.Columns) != len(s.Nodes) {
		return fmt.Errorf("%w: %d bias columns for %d nodes", ErrShape, len(s.Columns), len(s.Nodes))
	}
	switch s.Layout {
	case LayoutBlock:
		need := s.Offset + instances*s.Width()
		if len(raw.Header) < need {
			return fmt.Errorf("%w: %s has %d columns, %d instances of width %d need %d",
				ErrShape, source, len(raw.Header), instances, s.Width(), need)
		}
		return nil
	case LayoutSuffix, "":
	default:
		return fmt.Errorf("%w: unknown measured layout %q", ErrShape, s.Layout)
	}

	var missing []string
	if raw.Index(s.Index) < 0 {
		missing = append(missing, s.Index)
	}
	for n := 0; n < instances; n++ {
		_, cols := s.Resolve(raw, n)
		for _, c := range cols {
			if raw.Index(c) < 0 {
				missing = append(missing, c)
			}
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Source: source, Missing: missing}
	}
	return nil
}

// Extract reads instance n of the sheet as points tagged with item's device
// and corner. Empty cells are skipped.
func (s Schema) Extract(raw *table.Table, n int, item corner.WorkItem) ([]Point, error) {
	indexName, cols := s.Resolve(raw, n)
	ii := raw.Index(indexName)
	if s.Layout == LayoutBlock {
		ii = s.Offset + n*s.Width()
	}
	if ii < 0 || ii >= len(raw.Header) {
		return nil, &SchemaError{Source: "measured instance " + strconv.Itoa(n), Missing: []string{indexName}}
	}
	colIdx := make([]int, len(cols))
	for i, c := range cols {
		colIdx[i] = raw.Index(c)
		if s.Layout == LayoutBlock {
			colIdx[i] = ii + 1 + i
		}
		if colIdx[i] < 0 || colIdx[i] >= len(raw.Header) {
			return nil, &SchemaError{Source: "measured instance " + strconv.Itoa(n), Missing: []string{c}}
		}
	}

	var points []Point
	seen := make(map[Key]bool)
	for r := range raw.Rows {
		bias, err := raw.Float(r, ii)
		if err != nil {
			continue
		}
		for i, c := range colIdx {
			v, err := raw.Float(r, c)
			if err != nil {
				continue
			}
			p := Point{Device: item.Device, Corner: item.Corner, Bias: bias, Node: s.Nodes[i], Value: v}
			if seen[p.Key()] {
				continue // repeated measurement row
			}
			seen[p.Key()] = true
			points = append(points, p)
		}
	}
	return points, nil
}

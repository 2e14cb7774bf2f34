package normalize

import (
	"fmt"
	"strconv"

	"cornersweep/internal/table"
)

// ChunkColumn is appended by RepeatedBlocks to record each row's source chunk.
const ChunkColumn = "chunk"

// RepeatedBlocks slices a table whose columns repeat a fixed-width block into
// chunks of len(headers) columns, renames each chunk to headers and stacks
// them. K chunks of R rows give K×R rows.
func RepeatedBlocks(raw *table.Table, headers []string) (*table.Table, error) {
	width := len(headers)
	if width == 0 {
		return nil, fmt.Errorf("%w: empty block header", ErrShape)
	}
	if len(raw.Header) == 0 || len(raw.Header)%width != 0 {
		return nil, fmt.Errorf("%w: %d columns is not a multiple of block width %d", ErrShape, len(raw.Header), width)
	}
	chunks := len(raw.Header) / width

	out := table.New(append(append([]string(nil), headers...), ChunkColumn)...)
	for k := 0; k < chunks; k++ {
		for _, row := range raw.Rows {
			cells := make([]string, 0, width+1)
			cells = append(cells, row[k*width:(k+1)*width]...)
			cells = append(cells, strconv.Itoa(k))
			out.Rows = append(out.Rows, cells)
		}
	}
	return out, nil
}

// DigitalOutputs reads a digital cell's simulated result: the first row holds
// (x, y) pairs, one per truth-table row, and y is compared against threshold
// to give a logic level.
func DigitalOutputs(raw *table.Table, threshold float64) ([]int, error) {
	if raw.Len() == 0 {
		return nil, fmt.Errorf("%w: empty digital result", ErrShape)
	}
	first := &table.Table{Header: raw.Header, Rows: raw.Rows[:1]}
	blocks, err := RepeatedBlocks(first, []string{"x", "y"})
	if err != nil {
		return nil, err
	}
	yi := blocks.Index("y")
	bits := make([]int, blocks.Len())
	for r := range blocks.Rows {
		v, err := blocks.Float(r, yi)
		if err != nil {
			return nil, fmt.Errorf("%w: output %d: %v", ErrShape, r, err)
		}
		if v > threshold {
			bits[r] = 1
		}
	}
	return bits, nil
}

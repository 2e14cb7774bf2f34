package evaluate

// TruthResult is the comparison of a simulated truth table with the expected one.
type TruthResult struct {
	Rows       int
	Mismatches int
}

// Match reports whether every row agreed.
func (r TruthResult) Match() bool { return r.Rows > 0 && r.Mismatches == 0 }

// ErrorPercent is the share of rows that disagree.
func (r TruthResult) ErrorPercent() float64 {
	if r.Rows == 0 {
		return 100
	}
	return float64(r.Mismatches) * 100 / float64(r.Rows)
}

// TruthTable compares two truth tables row by row. Rows missing from
// simulated count as mismatches.
func TruthTable(expected, simulated [][]int) TruthResult {
	res := TruthResult{Rows: len(expected)}
	for i, want := range expected {
		if i >= len(simulated) || !equalRow(want, simulated[i]) {
			res.Mismatches++
		}
	}
	return res
}

func equalRow(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

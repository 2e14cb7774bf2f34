package regression

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"cornersweep/internal/config"
	"cornersweep/internal/corner"
	"cornersweep/internal/deck"
	"cornersweep/internal/dispatch"
	"cornersweep/internal/evaluate"
	"cornersweep/internal/logging"
	"cornersweep/internal/normalize"
	"cornersweep/internal/report"
	"cornersweep/internal/table"
)

// FunctionalMetric names the digital verdict metric.
const FunctionalMetric = "functional"

// runDigital simulates every cell at every corner and checks the simulated
// truth table against the declared one.
func (h *Harness) runDigital(ctx context.Context, s *config.SuiteConfig, dir string) (*SuiteResult, error) {
	processes, voltages, temps := s.Axes()
	cells := make(map[string]config.CellConfig, len(s.Cells))
	names := make([]string, 0, len(s.Cells))
	for _, c := range s.Cells {
		cells[c.Name] = c
		names = append(names, c.Name)
	}

	items := corner.Enumerate(processes, voltages, temps, names)
	byCell := make(map[string][]dispatch.Job, len(names))
	for _, it := range items {
		byCell[it.Device] = append(byCell[it.Device], jobFor(filepath.Join(dir, it.Device), it))
	}

	normLog := h.loggers.Get(logging.CategoryNormalize)
	var ready []dispatch.Job
	for _, name := range names {
		cellDir := filepath.Join(dir, name)
		if err := truthTable(cells[name]).WriteCSVFile(filepath.Join(cellDir, name+"_measured.csv")); err != nil {
			return nil, err
		}
		r, err := deck.Load(s.TemplatePath("", "", name), filepath.Join(cellDir, "netlists"))
		if err != nil {
			return nil, err
		}
		ok, _, err := renderJobs(r, byCell[name], nil, h.loggers.Get(logging.CategoryDispatch))
		if err != nil {
			return nil, err
		}
		ready = append(ready, ok...)
	}

	outcomes := h.dispatcher().Dispatch(ctx, ready)

	res := &SuiteResult{Name: s.Name, Kind: s.Kind, Dir: dir, Jobs: len(items)}
	resolved := make(map[string]int, len(names))
	groups := make(map[string][]evaluate.Group, len(names))
	simulated := make(map[string]*table.Table, len(names))
	skipped := make(map[string]bool)
	reportLog := h.loggers.Get(logging.CategoryReport)

	for _, o := range outcomes {
		name := o.Job.Item.Device
		if !o.Resolved {
			continue
		}
		resolved[name]++
		if skipped[name] {
			continue
		}

		cell := cells[name]
		outputs, err := readOutputs(o.Job.ResultPath, h.cfg.Policy.LogicThreshold, len(cell.Truth))
		if err != nil {
			normLog.Error("Cell skipped", zap.String("cell", name), zap.String("result", o.Job.ResultPath), zap.Error(err))
			res.Skipped = append(res.Skipped, DeviceError{Device: name, Err: err})
			skipped[name] = true
			delete(groups, name)
			continue
		}

		rows := simulatedTruth(cell.Truth, outputs)
		tr := evaluate.TruthTable(cell.Truth, rows)
		g := evaluate.Group{Device: name, Corner: o.Job.Item.Corner, Error: tr.ErrorPercent(), Rows: tr.Rows}
		groups[name] = append(groups[name], g)
		appendSimulated(simulated, cell, o.Job.Item.Corner, rows)

		msg := fmt.Sprintf("%s in PVT of %s functional simulation = %t", name, o.Job.Item.Corner, tr.Match())
		if tr.Match() {
			reportLog.Info(msg)
		} else {
			reportLog.Error(msg, zap.Int("mismatches", tr.Mismatches), zap.Int("rows", tr.Rows))
		}
	}

	var all []evaluate.Group
	coverage := make(map[string]report.Coverage, len(names))
	for _, name := range names {
		cellDir := filepath.Join(dir, name)
		expected := len(byCell[name])
		coverage[name] = report.Coverage{Expected: expected, Unresolved: expected - resolved[name]}
		res.Unresolved += expected - resolved[name]

		if t, ok := simulated[name]; ok && !skipped[name] {
			if err := t.WriteCSVFile(filepath.Join(cellDir, name+"_simulated.csv")); err != nil {
				return nil, err
			}
		}
		if err := report.FunctionalTable(groups[name]).WriteCSVFile(filepath.Join(cellDir, name+"_functional.csv")); err != nil {
			return nil, err
		}
		all = append(all, groups[name]...)
	}

	verdicts := report.Aggregate(FunctionalMetric, names, all, h.reportOptions(s))
	res.Verdicts = h.finish(verdicts, coverage)
	return res, nil
}

// truthTable renders a cell's declared truth table.
func truthTable(cell config.CellConfig) *table.Table {
	t := table.New(truthHeader(cell)...)
	for _, row := range cell.Truth {
		t.Append(intsToStrings(row)...)
	}
	return t
}

func truthHeader(cell config.CellConfig) []string {
	if len(cell.Header) > 0 {
		return cell.Header
	}
	width := len(cell.Truth[0])
	header := make([]string, width)
	for i := 0; i < width-1; i++ {
		header[i] = "input" + strconv.Itoa(i+1)
	}
	if width == 2 {
		header[0] = "input"
	}
	header[width-1] = "output"
	return header
}

// readOutputs reads a whitespace-delimited digital result and thresholds it
// to one logic level per truth table row.
func readOutputs(path string, threshold float64, rows int) ([]int, error) {
	raw, err := table.ReadFieldsFile(path)
	if err != nil {
		return nil, err
	}
	outputs, err := normalize.DigitalOutputs(raw, threshold)
	if err != nil {
		return nil, err
	}
	if len(outputs) != rows {
		return nil, fmt.Errorf("%w: %d simulated outputs for %d truth table rows", normalize.ErrShape, len(outputs), rows)
	}
	return outputs, nil
}

// simulatedTruth keeps the declared inputs and replaces the output column.
func simulatedTruth(expected [][]int, outputs []int) [][]int {
	rows := make([][]int, len(expected))
	for i, row := range expected {
		r := make([]int, len(row))
		copy(r, row)
		r[len(r)-1] = outputs[i]
		rows[i] = r
	}
	return rows
}

func appendSimulated(tables map[string]*table.Table, cell config.CellConfig, c corner.Spec, rows [][]int) {
	t, ok := tables[cell.Name]
	if !ok {
		t = table.New(append([]string{"process", "voltage", "temperature"}, truthHeader(cell)...)...)
		tables[cell.Name] = t
	}
	for _, row := range rows {
		t.Append(append([]string{c.Process, c.Voltage, c.Temperature}, intsToStrings(row)...)...)
	}
}

func intsToStrings(v []int) []string {
	out := make([]string, len(v))
	for i, n := range v {
		out[i] = strconv.Itoa(n)
	}
	return out
}

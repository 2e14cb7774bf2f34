package evaluate

import (
	"fmt"

	"cornersweep/internal/table"
)

// RecordsTable renders every error record (the error-analysis artifact).
func RecordsTable(records []ErrorRecord) *table.Table {
	t := table.New("device", "process", "voltage", "temperature", "bias", "node",
		"measured", "simulated", "matched", "step_error", "error", "rms_error")
	for _, r := range records {
		t.Append(r.Device, r.Corner.Process, r.Corner.Voltage, r.Corner.Temperature,
			table.FormatFloat(r.Bias), r.Node,
			table.FormatFloat(r.Measured), table.FormatFloat(r.Simulated), fmt.Sprint(r.Matched),
			table.FormatFloat(r.StepError), table.FormatFloat(r.Composite), table.FormatFloat(r.RMS))
	}
	return t
}

// GroupsTable renders per-group errors (the final error-analysis artifact).
func GroupsTable(groups []Group) *table.Table {
	t := table.New("device", "process", "voltage", "temperature", "rms_error", "rows")
	for _, g := range groups {
		t.Append(g.Device, g.Corner.Process, g.Corner.Voltage, g.Corner.Temperature,
			fmt.Sprintf("%.6g", g.Error), fmt.Sprint(g.Rows))
	}
	return t
}

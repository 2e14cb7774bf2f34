// Package corner enumerates the PVT corners a device model is validated at.
//
// A corner is one process/voltage/temperature environment. Every device
// variant is simulated at every corner, so the unit of work is the
// (variant, corner) pair.
package corner

import "strings"

// Spec identifies one simulation environment.
// Voltage and Process may be empty for suites that only sweep temperature.
type Spec struct {
	Process     string `json:"process" yaml:"process"`
	Voltage     string `json:"voltage" yaml:"voltage"`
	Temperature string `json:"temperature" yaml:"temperature"`
}

// String renders the spec as "process/volt V/temp C", skipping empty fields.
func (s Spec) String() string {
	parts := make([]string, 0, 3)
	if s.Process != "" {
		parts = append(parts, s.Process)
	}
	if s.Voltage != "" {
		parts = append(parts, s.Voltage+"V")
	}
	if s.Temperature != "" {
		parts = append(parts, s.Temperature+"C")
	}
	return strings.Join(parts, "/")
}

// WorkItem is a device variant at one corner. One deck and one result file
// map to each WorkItem.
type WorkItem struct {
	Device  string `json:"device"`
	Corner  Spec   `json:"corner"`
	Ordinal int    `json:"ordinal"` // position in the enumeration
}

func (w WorkItem) String() string {
	if c := w.Corner.String(); c != "" {
		return w.Device + "@" + c
	}
	return w.Device
}

// Enumerate returns the cross product of variants × processes × voltages ×
// temperatures. Order is variant-major, then process, voltage and
// temperature in declaration order. Inputs are not deduplicated.
func Enumerate(processes, voltages, temperatures, variants []string) []WorkItem {
	n := len(variants) * len(processes) * len(voltages) * len(temperatures)
	items := make([]WorkItem, 0, n)
	for _, dev := range variants {
		for _, p := range processes {
			for _, v := range voltages {
				for _, t := range temperatures {
					items = append(items, WorkItem{
						Device:  dev,
						Corner:  Spec{Process: p, Voltage: v, Temperature: t},
						Ordinal: len(items),
					})
				}
			}
		}
	}
	return items
}

// MeasuredOrdinal returns the instance block a WorkItem occupies in a
// foundry measurement sheet. Sheets list every variant at the first
// temperature, then every variant at the next one, so blocks are
// temperature-major. Returns -1 when the device or temperature is not declared.
func MeasuredOrdinal(item WorkItem, variants, temperatures []string) int {
	vi := indexOf(variants, item.Device)
	ti := indexOf(temperatures, item.Corner.Temperature)
	if vi < 0 || ti < 0 {
		return -1
	}
	return ti*len(variants) + vi
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

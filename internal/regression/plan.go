package regression

import (
	"path/filepath"

	"cornersweep/internal/config"
	"cornersweep/internal/corner"
)

// PlannedItem is one work item a run would simulate.
type PlannedItem struct {
	Suite  string
	Family string // cell name for digital suites
	Metric string
	Item   corner.WorkItem
	Deck   string // relative to the run directory
}

// Plan lists the work items of the named suites without rendering or
// simulating anything.
func (h *Harness) Plan(names []string) ([]PlannedItem, error) {
	suites, err := h.selectSuites(names)
	if err != nil {
		return nil, err
	}

	var plan []PlannedItem
	for _, s := range suites {
		processes, voltages, temps := s.Axes()
		switch s.Kind {
		case config.KindDigital:
			cells := make([]string, len(s.Cells))
			for i, c := range s.Cells {
				cells[i] = c.Name
			}
			for _, it := range corner.Enumerate(processes, voltages, temps, cells) {
				job := jobFor(filepath.Join(s.Name, it.Device), it)
				plan = append(plan, PlannedItem{Suite: s.Name, Family: it.Device, Metric: FunctionalMetric, Item: it, Deck: job.DeckPath})
			}
		case config.KindAnalog:
			for _, f := range s.Families {
				for _, m := range s.Metrics {
					base := filepath.Join(s.Name, f.Name, m.Name)
					for _, it := range corner.Enumerate(processes, voltages, temps, f.Variants) {
						plan = append(plan, PlannedItem{Suite: s.Name, Family: f.Name, Metric: m.Name, Item: it, Deck: jobFor(base, it).DeckPath})
					}
				}
			}
		}
	}
	return plan, nil
}

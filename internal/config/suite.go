package config

import (
	"fmt"
	"strings"
)

// Suite kinds.
const (
	KindDigital = "digital"
	KindAnalog  = "analog"
)

// ValidPolarities lists the device polarities an analog family may declare.
var ValidPolarities = []string{"npn", "pnp", "nmos", "pmos"}

// SuiteConfig declares one regression suite: what to simulate, at which
// corners, and what to compare the results against.
type SuiteConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // digital, analog

	// Deck template path; {device}, {family} and {metric} are expanded
	Template string `yaml:"template"`

	// Corner axes. An empty axis is a single unnamed value.
	Processes    []string `yaml:"processes"`
	Voltages     []string `yaml:"voltages"`
	Temperatures []string `yaml:"temperatures"`

	// Overrides policy.pass_threshold; digital suites default to 0
	PassThreshold *float64 `yaml:"pass_threshold,omitempty"`

	// Digital
	Cells []CellConfig `yaml:"cells,omitempty"`

	// Analog
	Families []FamilyConfig `yaml:"families,omitempty"`
	Metrics  []MetricConfig `yaml:"metrics,omitempty"`
	Sweep    SweepConfig    `yaml:"sweep,omitempty"`
}

// CellConfig is a digital cell and its expected truth table. The last
// column of every row is the output.
type CellConfig struct {
	Name   string   `yaml:"name"`
	Header []string `yaml:"header"`
	Truth  [][]int  `yaml:"truth"`
}

// FamilyConfig is one analog device family sharing a measured sheet.
type FamilyConfig struct {
	Name     string `yaml:"name"`
	Polarity string `yaml:"polarity"` // defaults to Name

	// Measured sheet and its layout
	Measured string   `yaml:"measured"`
	Layout   string   `yaml:"layout"` // suffix, block
	Index    string   `yaml:"index"`
	Columns  []string `yaml:"columns"`
	Offset   int      `yaml:"offset"`

	// Device variants, e.g. geometries
	Variants []string `yaml:"variants"`
}

// MetricConfig is one measured quantity, e.g. Ic probed as I(VCP).
type MetricConfig struct {
	Name  string `yaml:"name"`
	Probe string `yaml:"probe"`
}

// SweepConfig declares how simulator output is pivoted.
type SweepConfig struct {
	Index   string    `yaml:"index"`   // e.g. V(B)
	Columns string    `yaml:"columns"` // e.g. V(C)
	Keys    []float64 `yaml:"keys"`
	Nodes   []string  `yaml:"nodes"`
}

// Axes returns the corner axes with empty axes replaced by a single
// unnamed value.
func (s *SuiteConfig) Axes() (processes, voltages, temperatures []string) {
	orEmpty := func(v []string) []string {
		if len(v) == 0 {
			return []string{""}
		}
		return v
	}
	return orEmpty(s.Processes), orEmpty(s.Voltages), orEmpty(s.Temperatures)
}

// Threshold returns the suite's pass threshold.
func (s *SuiteConfig) Threshold(policy float64) float64 {
	if s.PassThreshold != nil {
		return *s.PassThreshold
	}
	if s.Kind == KindDigital {
		return 0
	}
	return policy
}

// TemplatePath expands the template pattern for one family, metric and device.
func (s *SuiteConfig) TemplatePath(family, metric, device string) string {
	return strings.NewReplacer("{family}", family, "{metric}", metric, "{device}", device).Replace(s.Template)
}

// PolarityKind returns the family's polarity.
func (f *FamilyConfig) PolarityKind() string {
	if f.Polarity != "" {
		return f.Polarity
	}
	return f.Name
}

// Validate validates one suite.
func (s *SuiteConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: suite without a name", ErrInvalid)
	}
	if s.Template == "" {
		return fmt.Errorf("%w: suite %s: template is empty", ErrInvalid, s.Name)
	}
	if len(s.Temperatures) == 0 {
		return fmt.Errorf("%w: suite %s: no temperatures", ErrInvalid, s.Name)
	}
	if s.PassThreshold != nil && *s.PassThreshold < 0 {
		return fmt.Errorf("%w: suite %s: pass_threshold must not be negative", ErrInvalid, s.Name)
	}
	switch s.Kind {
	case KindDigital:
		return s.validateDigital()
	case KindAnalog:
		return s.validateAnalog()
	default:
		return fmt.Errorf("%w: suite %s: unknown kind %q", ErrInvalid, s.Name, s.Kind)
	}
}

func (s *SuiteConfig) validateDigital() error {
	if len(s.Cells) == 0 {
		return fmt.Errorf("%w: suite %s: no cells", ErrInvalid, s.Name)
	}
	for _, c := range s.Cells {
		if c.Name == "" {
			return fmt.Errorf("%w: suite %s: cell without a name", ErrInvalid, s.Name)
		}
		if len(c.Truth) == 0 {
			return fmt.Errorf("%w: suite %s: cell %s has no truth table", ErrInvalid, s.Name, c.Name)
		}
		width := len(c.Truth[0])
		if width < 2 {
			return fmt.Errorf("%w: suite %s: cell %s needs an input and an output column", ErrInvalid, s.Name, c.Name)
		}
		if len(c.Header) != 0 && len(c.Header) != width {
			return fmt.Errorf("%w: suite %s: cell %s header has %d columns, rows have %d",
				ErrInvalid, s.Name, c.Name, len(c.Header), width)
		}
		for i, row := range c.Truth {
			if len(row) != width {
				return fmt.Errorf("%w: suite %s: cell %s row %d has %d columns, want %d",
					ErrInvalid, s.Name, c.Name, i, len(row), width)
			}
			for _, v := range row {
				if v != 0 && v != 1 {
					return fmt.Errorf("%w: suite %s: cell %s row %d: %d is not a logic level",
						ErrInvalid, s.Name, c.Name, i, v)
				}
			}
		}
	}
	return nil
}

func (s *SuiteConfig) validateAnalog() error {
	if len(s.Families) == 0 {
		return fmt.Errorf("%w: suite %s: no device families", ErrInvalid, s.Name)
	}
	if len(s.Metrics) == 0 {
		return fmt.Errorf("%w: suite %s: no metrics", ErrInvalid, s.Name)
	}
	for _, m := range s.Metrics {
		if m.Name == "" || m.Probe == "" {
			return fmt.Errorf("%w: suite %s: metrics need a name and a probe", ErrInvalid, s.Name)
		}
	}

	sw := s.Sweep
	if sw.Index == "" || sw.Columns == "" {
		return fmt.Errorf("%w: suite %s: sweep index and columns are required", ErrInvalid, s.Name)
	}
	if len(sw.Keys) == 0 || len(sw.Keys) != len(sw.Nodes) {
		return fmt.Errorf("%w: suite %s: sweep has %d keys for %d nodes", ErrInvalid, s.Name, len(sw.Keys), len(sw.Nodes))
	}

	for _, f := range s.Families {
		if f.Name == "" {
			return fmt.Errorf("%w: suite %s: family without a name", ErrInvalid, s.Name)
		}
		if !oneOf(f.PolarityKind(), ValidPolarities) {
			return fmt.Errorf("%w: suite %s: family %s: unknown polarity %q (valid: %v)",
				ErrInvalid, s.Name, f.Name, f.PolarityKind(), ValidPolarities)
		}
		if f.Measured == "" {
			return fmt.Errorf("%w: suite %s: family %s: measured sheet is required", ErrInvalid, s.Name, f.Name)
		}
		if len(f.Variants) == 0 {
			return fmt.Errorf("%w: suite %s: family %s: no variants", ErrInvalid, s.Name, f.Name)
		}
		if f.Layout != "" && f.Layout != "suffix" && f.Layout != "block" {
			return fmt.Errorf("%w: suite %s: family %s: unknown layout %q", ErrInvalid, s.Name, f.Name, f.Layout)
		}
		if f.Layout != "block" && f.Index == "" {
			return fmt.Errorf("%w: suite %s: family %s: index column is required", ErrInvalid, s.Name, f.Name)
		}
		if len(f.Columns) != len(sw.Nodes) {
			return fmt.Errorf("%w: suite %s: family %s has %d bias columns for %d sweep nodes",
				ErrInvalid, s.Name, f.Name, len(f.Columns), len(sw.Nodes))
		}
	}
	return nil
}

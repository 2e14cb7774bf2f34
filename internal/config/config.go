package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "sweep.yaml"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the whole harness configuration.
type Config struct {
	// Run layout
	Run RunConfig `yaml:"run"`

	// Simulator invocation
	Simulator SimulatorConfig `yaml:"simulator"`

	// Error evaluation and verdict policy
	Policy PolicyConfig `yaml:"policy"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Report artifacts
	Report ReportConfig `yaml:"report"`

	// Run ledger
	Store StoreConfig `yaml:"store"`

	// Regression suites to run
	Suites []SuiteConfig `yaml:"suites"`
}

// RunConfig configures the run directory and worker pool.
type RunConfig struct {
	// Root for run directories
	OutputDir string `yaml:"output_dir"`

	// Run directory name; empty means a UTC timestamp (run_std_2006_01_02_15_04_05)
	Name string `yaml:"name"`

	// Simulator processes in flight; 0 means twice the CPU count
	Workers int `yaml:"workers"`

	// Remove a suite's previous output before running it
	Clean bool `yaml:"clean"`
}

// PolicyConfig holds the numeric policy shared by all suites.
type PolicyConfig struct {
	PassThreshold  float64 `yaml:"pass_threshold"`  // percent, inclusive
	ErrorCeiling   float64 `yaml:"error_ceiling"`   // reported errors saturate here
	CurrentFloor   float64 `yaml:"current_floor"`   // clamp before relative error
	LogicThreshold float64 `yaml:"logic_threshold"` // volts, strictly above is logic 1
	Unmatched      string  `yaml:"unmatched"`       // zero, drop
	Unresolved     string  `yaml:"unresolved"`      // ignore, fail
}

// ReportConfig toggles optional report artifacts.
type ReportConfig struct {
	Charts       bool `yaml:"charts"`
	ConsoleTable bool `yaml:"console_table"`
}

// StoreConfig configures the SQLite run ledger.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			OutputDir: ".",
		},

		Simulator: SimulatorConfig{
			Binary:           "Xyce",
			Arguments:        []string{"-hspice-ext", "all", "{deck}", "-l", "{log}"},
			VersionArguments: []string{"-v"},
			Timeout:          "30m",
			MaxOutputBytes:   1 << 20,
			AllowedEnvVars:   []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR"},
		},

		Policy: PolicyConfig{
			PassThreshold:  5.0,
			ErrorCeiling:   100.0,
			CurrentFloor:   5e-12,
			LogicThreshold: 2.5,
			Unmatched:      "zero",
			Unresolved:     "ignore",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Report: ReportConfig{
			ConsoleTable: true,
		},

		Store: StoreConfig{
			Path: filepath.Join(".sweep", "ledger.db"),
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Relative template and measured paths are resolved against the
// file's directory.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.resolvePaths(filepath.Dir(path))
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.Suites {
		s := &c.Suites[i]
		s.Template = abs(s.Template)
		for j := range s.Families {
			s.Families[j].Measured = abs(s.Families[j].Measured)
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if bin := os.Getenv("SWEEP_SIMULATOR"); bin != "" {
		c.Simulator.Binary = bin
	}
	if dir := os.Getenv("SWEEP_OUTPUT_DIR"); dir != "" {
		c.Run.OutputDir = dir
	}
	if w := os.Getenv("SWEEP_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			c.Run.Workers = n
		}
	}
	if path := os.Getenv("SWEEP_STORE"); path != "" {
		c.Store.Path = path
		c.Store.Enabled = true
	}
}

// GetSimulatorTimeout returns the per-invocation timeout as a duration.
func (c *Config) GetSimulatorTimeout() time.Duration {
	d, err := time.ParseDuration(c.Simulator.Timeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// RunName returns the run directory name for a run started at now.
func (c *Config) RunName(now time.Time) string {
	if c.Run.Name != "" {
		return c.Run.Name
	}
	return now.UTC().Format("run_std_2006_01_02_15_04_05")
}

// RunDir returns the run directory for a run started at now.
func (c *Config) RunDir(now time.Time) string {
	return filepath.Join(c.Run.OutputDir, c.RunName(now))
}

// Suite returns the named suite.
func (c *Config) Suite(name string) (*SuiteConfig, bool) {
	for i := range c.Suites {
		if c.Suites[i].Name == name {
			return &c.Suites[i], true
		}
	}
	return nil, false
}

// ValidUnmatched lists the accepted policy.unmatched values.
var ValidUnmatched = []string{"zero", "drop"}

// ValidUnresolved lists the accepted policy.unresolved values.
var ValidUnresolved = []string{"ignore", "fail"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Simulator.Binary == "" {
		return fmt.Errorf("%w: simulator.binary is empty", ErrInvalid)
	}
	if !hasDeckToken(c.Simulator.Arguments) {
		return fmt.Errorf("%w: simulator.arguments must reference {deck}", ErrInvalid)
	}
	if _, err := time.ParseDuration(c.Simulator.Timeout); c.Simulator.Timeout != "" && err != nil {
		return fmt.Errorf("%w: simulator.timeout: %v", ErrInvalid, err)
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("%w: run.workers must not be negative", ErrInvalid)
	}

	p := c.Policy
	if p.PassThreshold < 0 {
		return fmt.Errorf("%w: policy.pass_threshold must not be negative", ErrInvalid)
	}
	if p.ErrorCeiling <= 0 {
		return fmt.Errorf("%w: policy.error_ceiling must be positive", ErrInvalid)
	}
	if p.CurrentFloor < 0 {
		return fmt.Errorf("%w: policy.current_floor must not be negative", ErrInvalid)
	}
	if !oneOf(p.Unmatched, ValidUnmatched) {
		return fmt.Errorf("%w: policy.unmatched %q (valid: %v)", ErrInvalid, p.Unmatched, ValidUnmatched)
	}
	if !oneOf(p.Unresolved, ValidUnresolved) {
		return fmt.Errorf("%w: policy.unresolved %q (valid: %v)", ErrInvalid, p.Unresolved, ValidUnresolved)
	}

	if len(c.Suites) == 0 {
		return fmt.Errorf("%w: no suites configured", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Suites))
	for i := range c.Suites {
		s := &c.Suites[i]
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate suite %q", ErrInvalid, s.Name)
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func hasDeckToken(args []string) bool {
	for _, a := range args {
		if strings.Contains(a, "{deck}") {
			return true
		}
	}
	return false
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}

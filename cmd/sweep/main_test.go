package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"cornersweep/internal/config"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Run.OutputDir = filepath.Join(dir, "runs")
	cfg.Store.Path = filepath.Join(dir, "ledger.db")
	cfg.Logging.Level = "error"
	cfg.Suites = []config.SuiteConfig{{
		Name:         "bjt",
		Kind:         config.KindAnalog,
		Template:     "{family}_{metric}.spice",
		Temperatures: []string{"25", "-40"},
		Metrics:      []config.MetricConfig{{Name: "Ic", Probe: "I(VCP)"}},
		Sweep:        config.SweepConfig{Index: "V(B)", Columns: "V(C)", Keys: []float64{1, 2}, Nodes: []string{"vcp1", "vcp2"}},
		Families: []config.FamilyConfig{{
			Name:     "npn",
			Measured: "npn.csv",
			Index:    "vbp ",
			Columns:  []string{"vcp =1", "vcp =2"},
			Variants: []string{"npn_a", "npn_b"},
		}},
	}}
	path := filepath.Join(dir, "sweep.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return path
}

func TestInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")

	out, err := execute(t, "init", "--config", path)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := execute(t, "init", "--config", path); err == nil {
		t.Error("expected init to refuse an existing file")
	}

	// the default configuration has no suites yet
	_, err = execute(t, "plan", "--config", path)
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestPlanCmd(t *testing.T) {
	path := writeConfig(t, t.TempDir())

	out, err := execute(t, "plan", "--config", path)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if !strings.Contains(out, "4 work items") {
		t.Errorf("expected 4 work items, got: %s", out)
	}
	if !strings.Contains(out, filepath.Join("bjt", "npn", "Ic", "netlists", "npn_b_-40c.spice")) {
		t.Errorf("missing deck path in: %s", out)
	}

	if _, err := execute(t, "plan", "--config", path, "missing"); err == nil {
		t.Error("expected an error for an unknown suite")
	}
}

func TestHistoryCmdEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	out, err := execute(t, "history", "--config", path)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No recorded runs in "+filepath.Join(dir, "ledger.db")) {
		t.Errorf("unexpected output: %s", out)
	}
}

// writeDigitalConfig declares one inverter at one corner, simulated by a
// shell script that writes out as the wrdata output of every run.
func writeDigitalConfig(t *testing.T, dir, out string) string {
	t.Helper()
	script := filepath.Join(dir, "sim.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nprintf '"+out+"\\n' > \"$2\"\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "inv.spice"), []byte("* {{ device }}\nwrdata {{ result }} v(out)\n"), 0644); err != nil {
		t.Fatalf("write deck: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Run.OutputDir = filepath.Join(dir, "runs")
	cfg.Run.Name = "run"
	cfg.Simulator.Binary = script
	cfg.Simulator.Arguments = []string{"{deck}", "{result}"}
	cfg.Simulator.VersionMatch = ""
	cfg.Store.Enabled = true
	cfg.Store.Path = filepath.Join(dir, "ledger.db")
	cfg.Logging.Level = "error"
	cfg.Suites = []config.SuiteConfig{{
		Name:         "sc",
		Kind:         config.KindDigital,
		Template:     "{device}.spice",
		Temperatures: []string{"25"},
		Cells:        []config.CellConfig{{Name: "inv", Truth: [][]int{{0, 1}, {1, 0}}}},
	}}
	path := filepath.Join(dir, "sweep.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return path
}

func TestRunCmd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	t.Cleanup(func() {
		numCores = 0
		strict = false
	})

	t.Run("Passing", func(t *testing.T) {
		path := writeDigitalConfig(t, t.TempDir(), " 0 5 1e-6 0")

		out, err := execute(t, "run", "--config", path, "-j", "3", "--strict")
		if err != nil {
			t.Fatalf("run failed: %v\n%s", err, out)
		}
		if cfg.Run.Workers != 3 {
			t.Errorf("expected -j to set 3 workers, got %d", cfg.Run.Workers)
		}
		if !strings.Contains(out, "PASS") {
			t.Errorf("expected a PASS verdict in: %s", out)
		}

		out, err = execute(t, "history", "--config", path, "inv")
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(out, "run  ") || !strings.Contains(out, "inv") {
			t.Errorf("expected the recorded run in: %s", out)
		}
	})

	t.Run("FailingStrict", func(t *testing.T) {
		path := writeDigitalConfig(t, t.TempDir(), " 0 0 1e-6 0")

		out, err := execute(t, "run", "--config", path, "-j", "1", "--strict")
		if !errors.Is(err, errRegressionFailed) {
			t.Fatalf("expected errRegressionFailed, got %v\n%s", err, out)
		}
		if !strings.Contains(out, "FAIL") {
			t.Errorf("expected a FAIL verdict in: %s", out)
		}

		if _, err := execute(t, "run", "--config", path, "--strict=false"); err != nil {
			t.Errorf("failing verdicts must not fail the command without --strict: %v", err)
		}
	})
}

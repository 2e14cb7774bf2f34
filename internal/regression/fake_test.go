package regression

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cornersweep/internal/config"
	"cornersweep/internal/simulator"
)

// errNoOutput makes fakeSimulator exit without writing a result.
var errNoOutput = errors.New("no output")

// fakeSimulator stands in for the simulator binary. The result path is the
// argument following -r.
type fakeSimulator struct {
	mu      sync.Mutex
	write   func(result string) error
	version string
	calls   int
}

func (f *fakeSimulator) Execute(_ context.Context, cmd simulator.Command) (*simulator.ExecutionResult, error) {
	result := ""
	for i, a := range cmd.Arguments {
		if a == "-r" && i+1 < len(cmd.Arguments) {
			result = cmd.Arguments[i+1]
		}
	}
	if result == "" {
		return &simulator.ExecutionResult{Success: true, Stdout: f.version}, nil
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := f.write(result); err != nil {
		return &simulator.ExecutionResult{Success: true, ExitCode: 1, Stderr: err.Error()}, nil
	}
	return &simulator.ExecutionResult{Success: true}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Run.OutputDir = t.TempDir()
	cfg.Run.Name = "run"
	cfg.Run.Workers = 4
	cfg.Simulator.Binary = "fake-sim"
	cfg.Simulator.Arguments = []string{"-b", simulator.TokenDeck, "-r", simulator.TokenResult}
	cfg.Simulator.VersionMatch = ""
	cfg.Report.Charts = true
	return cfg
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// resultParts splits ".../<metric>/simulated/<name>.csv" into metric and name.
func resultParts(result string) (metric, name string) {
	name = strings.TrimSuffix(filepath.Base(result), ".csv")
	metric = filepath.Base(filepath.Dir(filepath.Dir(result)))
	return metric, name
}

package simulator

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrSimulatorNotFound is returned when the simulator binary cannot be run.
var ErrSimulatorNotFound = errors.New("simulator not found")

// ErrSimulatorVersion is returned when the simulator reports an unexpected version.
var ErrSimulatorVersion = errors.New("unsupported simulator version")

// CheckVersion runs the simulator with versionArgs and requires want in its
// output. An empty want only checks that the binary runs.
func CheckVersion(ctx context.Context, runner Executor, binary string, versionArgs []string, want string) (string, error) {
	if _, err := lookPath(binary); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSimulatorNotFound, binary)
	}
	res, err := runner.Execute(ctx, Command{Binary: binary, Arguments: versionArgs, Timeout: 30 * time.Second})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSimulatorNotFound, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: %s", ErrSimulatorNotFound, res.Error)
	}
	out := strings.TrimSpace(res.Output())
	if want != "" && !strings.Contains(out, want) {
		return out, fmt.Errorf("%w: %s requires %q, got %q", ErrSimulatorVersion, binary, want, firstLine(out))
	}
	return out, nil
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

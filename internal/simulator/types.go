// Package simulator runs the external circuit simulator as a subprocess.
//
// The simulator is opaque: it reads a deck file and writes a result file.
// Commands are always an explicit argument list; nothing goes through a shell.
package simulator

import (
	"context"
	"strings"
	"time"
)

// Argument tokens expanded per invocation.
const (
	TokenDeck   = "{deck}"
	TokenLog    = "{log}"
	TokenResult = "{result}"
)

// Command is one simulator invocation.
type Command struct {
	Binary           string        `json:"binary"`
	Arguments        []string      `json:"arguments"`
	WorkingDirectory string        `json:"working_directory,omitempty"`
	Environment      []string      `json:"environment,omitempty"` // KEY=VALUE
	Timeout          time.Duration `json:"timeout,omitempty"`
}

// CommandString returns the command for display/logging.
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// Invocation builds the command for one deck by expanding the argument tokens.
func Invocation(binary string, args []string, deckPath, logPath, resultPath string) Command {
	r := strings.NewReplacer(TokenDeck, deckPath, TokenLog, logPath, TokenResult, resultPath)
	expanded := make([]string, len(args))
	for i, a := range args {
		expanded[i] = r.Replace(a)
	}
	return Command{Binary: binary, Arguments: expanded}
}

// ExecutionResult is the outcome of one invocation.
type ExecutionResult struct {
	// Success is false only when the process could not be run at all.
	// A non-zero exit still counts as Success.
	Success bool `json:"success"`

	// ExitCode is -1 if not available.
	ExitCode int `json:"exit_code"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// CPUTime is user plus system time of the simulator process.
	CPUTime time.Duration `json:"cpu_time"`

	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	Error string `json:"error,omitempty"`

	Command *Command `json:"command,omitempty"`
}

// IsError returns true if the execution infrastructure failed.
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// IsNonZeroExit returns true if the command ran but returned non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r.Success && r.ExitCode != 0
}

// Output returns stdout and stderr joined.
func (r *ExecutionResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Executor runs commands.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)
}

// ExecutorConfig holds executor defaults.
type ExecutorConfig struct {
	DefaultTimeout     time.Duration
	MaxOutputBytes     int64
	AllowedEnvironment []string
}

// DefaultExecutorConfig returns defaults sized for long simulator runs.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout:     30 * time.Minute,
		MaxOutputBytes:     1 * 1024 * 1024,
		AllowedEnvironment: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR"},
	}
}

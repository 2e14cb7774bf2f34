package config

// SimulatorConfig configures how decks are simulated.
type SimulatorConfig struct {
	// Simulator executable, resolved on PATH
	Binary string `yaml:"binary"`

	// Argument list; {deck}, {log} and {result} are expanded per work item
	Arguments []string `yaml:"arguments"`

	// Arguments that make the simulator print its version
	VersionArguments []string `yaml:"version_arguments"`

	// Substring the version output must contain; empty skips the check
	VersionMatch string `yaml:"version_match"`

	// Per-invocation timeout
	Timeout string `yaml:"timeout"`

	// Captured stdout/stderr cap per stream
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// Environment variables passed through to the simulator
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
}

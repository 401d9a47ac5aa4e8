package config

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the triage run.
type Config struct {
	// Positional arguments
	InputDir  string // Tree of archives to scan
	OutputDir string // Writable root for results

	// Logging
	LogFile  string
	LogLevel string

	// Parallelism of the per-batch match pool
	Workers int

	// Resume support; empty disables the processed-archive registry
	StateDB string

	// Observability
	TracingEnabled  bool
	TracingEndpoint string
	TracingProtocol string
}

// Settings is the optional YAML settings file. Values present in the file
// override the built-in defaults but not environment variables or flags.
type Settings struct {
	LogLevel string `yaml:"log_level"`
	Workers  int    `yaml:"workers"`
	StateDB  string `yaml:"state_db"`
	Tracing  struct {
		Enabled  bool   `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
		Protocol string `yaml:"protocol"`
	} `yaml:"tracing"`
}

// Load parses args (program arguments without the binary name), merges the
// optional settings file and environment, and validates the result.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		LogFile:         "qelp.log",
		LogLevel:        "info",
		Workers:         runtime.NumCPU(),
		TracingProtocol: "grpc",
	}

	fs := flag.NewFlagSet("qelp", flag.ContinueOnError)
	logFile := fs.String("log", cfg.LogFile, "Path to log file")
	fs.StringVar(logFile, "l", cfg.LogFile, "Path to log file (shorthand)")
	settingsPath := fs.String("settings", getEnv("QELP_SETTINGS", ""), "Path to optional YAML settings file")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: qelp [flags] input_dir output_dir\n\n")
		fmt.Fprintf(fs.Output(), "Quick ESXi Log Parser parses ESXi logs & produces results in csv format\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *settingsPath != "" {
		if err := cfg.applySettings(*settingsPath); err != nil {
			return nil, err
		}
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)
	cfg.StateDB = getEnv("STATE_DB", cfg.StateDB)
	cfg.TracingEnabled = getEnvBool("TRACING_ENABLED", cfg.TracingEnabled)
	cfg.TracingEndpoint = getEnv("TRACING_ENDPOINT", cfg.TracingEndpoint)
	cfg.TracingProtocol = getEnv("TRACING_PROTOCOL", cfg.TracingProtocol)
	cfg.LogFile = *logFile

	if fs.NArg() != 2 {
		fs.Usage()
		return nil, fmt.Errorf("expected input_dir and output_dir arguments, got %d", fs.NArg())
	}
	cfg.InputDir = fs.Arg(0)
	cfg.OutputDir = fs.Arg(1)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applySettings overlays the YAML settings file onto the defaults.
func (c *Config) applySettings(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	if s.LogLevel != "" {
		c.LogLevel = s.LogLevel
	}
	if s.Workers > 0 {
		c.Workers = s.Workers
	}
	if s.StateDB != "" {
		c.StateDB = s.StateDB
	}
	if s.Tracing.Enabled {
		c.TracingEnabled = true
	}
	if s.Tracing.Endpoint != "" {
		c.TracingEndpoint = s.Tracing.Endpoint
	}
	if s.Tracing.Protocol != "" {
		c.TracingProtocol = s.Tracing.Protocol
	}
	return nil
}

// Validate checks the directories and settings. The input directory must
// exist; the output directory is created when missing.
func (c *Config) Validate() error {
	info, err := os.Stat(c.InputDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s either does not exist or is not a directory; please provide a valid directory path", c.InputDir)
	}

	if info, err := os.Stat(c.OutputDir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory; please provide a valid directory path", c.OutputDir)
		}
	} else if err := os.Mkdir(c.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if c.TracingProtocol != "grpc" && c.TracingProtocol != "http" {
		return fmt.Errorf("TRACING_PROTOCOL must be 'grpc' or 'http'")
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

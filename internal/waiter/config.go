package waiter

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"sdrelay/internal/channel"
)

// Defaults mirror what operators expect from the service-unit side.
const (
	DefaultSharedDir    = "/tmp/container-notify"
	DefaultTimeout      = 60 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultStopGrace    = 10 * time.Second
)

// Environment variables consumed by the waiter.
const (
	EnvTimeout   = "TIMEOUT"
	EnvVerbose   = "SDRELAY_VERBOSE"
	EnvContainer = "SDRELAY_CONTAINER"
)

// Config holds the waiter configuration.
type Config struct {
	SharedDir     string        // shared directory polled for relay state
	Timeout       time.Duration // readiness deadline
	PollInterval  time.Duration // fixed poll cadence
	StopGrace     time.Duration // SIGTERM-to-SIGKILL escalation window
	ContainerName string        // optional: stop this container via the Docker API on failure
	Verbose       bool
	Logger        *log.Logger
}

// fileConfig is the optional YAML config file layout. Every field is
// optional; the file only overrides defaults, and environment
// variables override the file.
type fileConfig struct {
	SharedDir        string `yaml:"shared_dir,omitempty"`
	TimeoutSeconds   int    `yaml:"timeout_seconds,omitempty"`
	PollIntervalMS   int    `yaml:"poll_interval_ms,omitempty"`
	StopGraceSeconds int    `yaml:"stop_grace_seconds,omitempty"`
	ContainerName    string `yaml:"container_name,omitempty"`
	Verbose          bool   `yaml:"verbose,omitempty"`
}

// LoadConfig resolves the configuration: defaults, then the config
// file if a path is given, then environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		SharedDir:    DefaultSharedDir,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		StopGrace:    DefaultStopGrace,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
		if fc.SharedDir != "" {
			cfg.SharedDir = fc.SharedDir
		}
		if fc.TimeoutSeconds > 0 {
			cfg.Timeout = time.Duration(fc.TimeoutSeconds) * time.Second
		}
		if fc.PollIntervalMS > 0 {
			cfg.PollInterval = time.Duration(fc.PollIntervalMS) * time.Millisecond
		}
		if fc.StopGraceSeconds > 0 {
			cfg.StopGrace = time.Duration(fc.StopGraceSeconds) * time.Second
		}
		if fc.ContainerName != "" {
			cfg.ContainerName = fc.ContainerName
		}
		if fc.Verbose {
			cfg.Verbose = true
		}
	}

	if dir := os.Getenv(channel.EnvSharedDir); dir != "" {
		cfg.SharedDir = dir
	}
	if raw := os.Getenv(EnvTimeout); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	if name := os.Getenv(EnvContainer); name != "" {
		cfg.ContainerName = name
	}
	if BoolEnv(EnvVerbose) {
		cfg.Verbose = true
	}

	return cfg, nil
}

// BoolEnv interprets a boolean-like environment variable.
func BoolEnv(name string) bool {
	switch os.Getenv(name) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Package config loads and validates the run configuration for the
// Autom6A pipeline: input locations, output root, external tool paths,
// runtime context definitions, and retry/timeout policy.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	RunID         string          `yaml:"run_id"`
	SignalDir     string          `yaml:"signal_dir"`
	Reference     string          `yaml:"reference"`
	OutputRoot    string          `yaml:"output_root"`
	Threads       int             `yaml:"threads"`
	BasecallModel string          `yaml:"basecall_model"`
	StageTimeout  string          `yaml:"stage_timeout"`
	MaxAttempts   int             `yaml:"max_attempts"`
	RetryBackoff  string          `yaml:"retry_backoff"`
	TailBytes     int             `yaml:"tail_bytes"`
	LogLevel      string          `yaml:"log_level"`
	Tools         ToolsConfig     `yaml:"tools"`
	Contexts      []ContextConfig `yaml:"contexts"`
}

// ToolsConfig holds the path (or bare command name) of each external tool.
type ToolsConfig struct {
	Pod5       string `yaml:"pod5"`
	Dorado     string `yaml:"dorado"`
	Samtools   string `yaml:"samtools"`
	Minimap2   string `yaml:"minimap2"`
	Nanopolish string `yaml:"nanopolish"`
	M6anet     string `yaml:"m6anet"`
}

// ContextConfig describes one isolated runtime environment a stage runs under.
type ContextConfig struct {
	ID            string            `yaml:"id"`
	PathDirs      []string          `yaml:"path"`
	Env           map[string]string `yaml:"env"`
	ConflictsWith []string          `yaml:"conflicts_with"`
}

// minTailBytes is the floor for captured diagnostic output; configured
// values below it are clamped up so failure reports are never truncated
// into uselessness.
const minTailBytes = 1024

// Validate checks that required fields are present and policy values are sane.
func (c *Config) Validate() error {
	if c.SignalDir == "" {
		return fmt.Errorf("signal_dir is required")
	}
	if c.Reference == "" {
		return fmt.Errorf("reference is required")
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("output_root is required")
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be >= 1, got %d", c.Threads)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if _, err := time.ParseDuration(c.StageTimeout); err != nil {
		return fmt.Errorf("stage_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.RetryBackoff); err != nil {
		return fmt.Errorf("retry_backoff: %w", err)
	}
	seen := map[string]bool{}
	for _, rc := range c.Contexts {
		if rc.ID == "" {
			return fmt.Errorf("context with empty id")
		}
		if seen[rc.ID] {
			return fmt.Errorf("duplicate context id %q", rc.ID)
		}
		seen[rc.ID] = true
	}
	return nil
}

// StageTimeoutDuration returns the parsed per-stage timeout.
func (c *Config) StageTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.StageTimeout)
	if err != nil {
		return 2 * time.Hour
	}
	return d
}

// RetryBackoffDuration returns the parsed fixed delay between stage attempts.
func (c *Config) RetryBackoffDuration() time.Duration {
	d, err := time.ParseDuration(c.RetryBackoff)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// EffectiveTailBytes returns the diagnostic tail size, clamped to the floor.
func (c *Config) EffectiveTailBytes() int {
	if c.TailBytes < minTailBytes {
		return minTailBytes
	}
	return c.TailBytes
}

// Load resolves config from defaults plus an optional YAML file.
// A .env file in the working directory is applied to the process
// environment first so ${VAR} expansion in paths can use it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	expandPaths(cfg)
	return cfg, nil
}

func mergeFile(dst *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, dst)
}

// expandPaths applies ${VAR} expansion and makes input/output paths absolute.
func expandPaths(c *Config) {
	c.SignalDir = absPath(os.ExpandEnv(c.SignalDir))
	c.Reference = absPath(os.ExpandEnv(c.Reference))
	c.OutputRoot = absPath(os.ExpandEnv(c.OutputRoot))
	c.Tools.Pod5 = os.ExpandEnv(c.Tools.Pod5)
	c.Tools.Dorado = os.ExpandEnv(c.Tools.Dorado)
	c.Tools.Samtools = os.ExpandEnv(c.Tools.Samtools)
	c.Tools.Minimap2 = os.ExpandEnv(c.Tools.Minimap2)
	c.Tools.Nanopolish = os.ExpandEnv(c.Tools.Nanopolish)
	c.Tools.M6anet = os.ExpandEnv(c.Tools.M6anet)
}

func absPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func defaults() *Config {
	return &Config{
		Threads:       4,
		BasecallModel: "rna004_130bps_sup@v5.0.0",
		StageTimeout:  "2h",
		MaxAttempts:   3,
		RetryBackoff:  "30s",
		TailBytes:     8192,
		LogLevel:      "info",
		Tools: ToolsConfig{
			Pod5:       "pod5",
			Dorado:     "dorado",
			Samtools:   "samtools",
			Minimap2:   "minimap2",
			Nanopolish: "nanopolish",
			M6anet:     "m6anet",
		},
		Contexts: []ContextConfig{
			{ID: "nanopore", ConflictsWith: []string{"m6anet"}},
			{ID: "m6anet", ConflictsWith: []string{"nanopore"}},
		},
	}
}

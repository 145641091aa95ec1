// Package config loads the host application configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all autoloop host configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Loop     LoopConfig     `yaml:"loop"`
	Commands CommandsConfig `yaml:"commands"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LLMConfig configures the model collaborator.
type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"AUTOLOOP_PROVIDER"`
	Model       string  `yaml:"model" env:"AUTOLOOP_MODEL"`
	APIKey      string  `yaml:"api_key" env:"AUTOLOOP_API_KEY"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	System      string  `yaml:"system_prompt"`
}

// LoopConfig configures the controller.
type LoopConfig struct {
	MaxIterations       int            `yaml:"max_iterations" env:"AUTOLOOP_MAX_ITERATIONS"`
	AlwaysContinue      bool           `yaml:"always_continue"`
	ContinuePrompt      string         `yaml:"continue_prompt"`
	LoopDetectionWindow int            `yaml:"loop_detection_window"`
	MaxSubagentDepth    int            `yaml:"max_subagent_depth"`
	OutputCharLimits    map[string]int `yaml:"output_char_limits"`
	OutputLineLimits    map[string]int `yaml:"output_line_limits"`
}

// CommandsConfig configures the command-execution collaborator.
type CommandsConfig struct {
	Allowed           []string `yaml:"allowed"`
	WorkspaceDir      string   `yaml:"workspace_dir" env:"AUTOLOOP_WORKSPACE"`
	ShellTimeoutMs    int      `yaml:"shell_timeout_ms"`
	MaxShellTimeoutMs int      `yaml:"max_shell_timeout_ms"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"AUTOLOOP_LOG_LEVEL"`
	Development bool   `yaml:"development"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "openai",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Loop: LoopConfig{
			MaxIterations:       10,
			LoopDetectionWindow: 10,
			MaxSubagentDepth:    1,
		},
		Commands: CommandsConfig{
			Allowed:           []string{"shell", "read_file", "write_file", "list_dir", "glob", "grep", "current_time"},
			ShellTimeoutMs:    10000,
			MaxShellTimeoutMs: 600000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path (optional; "" skips the file), then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.Loop.MaxIterations < 0 {
		return fmt.Errorf("loop.max_iterations must not be negative")
	}
	if len(c.Commands.Allowed) == 0 {
		return fmt.Errorf("commands.allowed must list at least one command")
	}
	return nil
}

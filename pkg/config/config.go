// Package config loads and validates the texforge engine's configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Version      string             `yaml:"version" json:"version"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" json:"orchestrator"`
	Timeouts     TimeoutConfig      `yaml:"timeouts" json:"timeouts"`
	Tools        ToolsConfig        `yaml:"tools" json:"tools"`
	Storage      StorageConfig      `yaml:"storage" json:"storage"`
	Archive      ArchiveConfig      `yaml:"archive" json:"archive"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics" json:"metrics"`
}

// OrchestratorConfig governs admission control and job lifecycle.
type OrchestratorConfig struct {
	MaxConcurrent        int           `yaml:"max_concurrent" json:"max_concurrent"`
	RetentionHours       int           `yaml:"retention_hours" json:"retention_hours"`
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds" json:"sweep_interval_seconds"`
	CancelGracePeriod    time.Duration `yaml:"cancel_grace_period" json:"cancel_grace_period"`
	ShutdownDrain        time.Duration `yaml:"shutdown_drain" json:"shutdown_drain"`
}

// TimeoutConfig bounds the adaptive per-job timeout calculation.
type TimeoutConfig struct {
	DefaultTimeoutSeconds int `yaml:"default_timeout_seconds" json:"default_timeout_seconds"`
	MaxTimeoutSeconds     int `yaml:"max_timeout_seconds" json:"max_timeout_seconds"`
}

// ToolsConfig names the external executables the engine invokes. Each
// path doubles as the Process Runner's allow-listed argv[0] for its stage.
type ToolsConfig struct {
	CompilerPath         string `yaml:"compiler_path" json:"compiler_path"`
	ConverterPath        string `yaml:"converter_path" json:"converter_path"`
	VectorizerPath       string `yaml:"vectorizer_path" json:"vectorizer_path"`
	PackageInstallerPath string `yaml:"package_installer_path" json:"package_installer_path"`
}

// StorageConfig controls where job working/output directories live.
type StorageConfig struct {
	UploadRoot      string `yaml:"upload_root" json:"upload_root"`
	OutputRoot      string `yaml:"output_root" json:"output_root"`
	MaxFileSizeBytes int64  `yaml:"max_file_size_bytes" json:"max_file_size_bytes"`
}

// ArchiveConfig tunes the extractor's safety policy.
type ArchiveConfig struct {
	ExtractTimeoutSeconds int     `yaml:"extract_timeout_seconds" json:"extract_timeout_seconds"`
	MaxExpansionRatio     float64 `yaml:"max_expansion_ratio" json:"max_expansion_ratio"`
	MaxExpandedBytes      int64   `yaml:"max_expanded_bytes" json:"max_expanded_bytes"`
	MaxMemberCount        int     `yaml:"max_member_count" json:"max_member_count"`
	MaxPathComponentBytes int     `yaml:"max_path_component_bytes" json:"max_path_component_bytes"`
}

// LoggingConfig mirrors the teacher's flat logging section.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig controls the ambient Prometheus metrics surface.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultConfig provides the engine's default configuration values,
// matching the defaults named throughout the component design.
var DefaultConfig = Config{
	Version: "1.0",
	Orchestrator: OrchestratorConfig{
		MaxConcurrent:        5,
		RetentionHours:       24,
		SweepIntervalSeconds: 3600,
		CancelGracePeriod:    5 * time.Second,
		ShutdownDrain:        30 * time.Second,
	},
	Timeouts: TimeoutConfig{
		DefaultTimeoutSeconds: 600,
		MaxTimeoutSeconds:     1800,
	},
	Tools: ToolsConfig{
		CompilerPath:         "/usr/bin/latexmk",
		ConverterPath:        "/usr/bin/make4ht",
		VectorizerPath:       "/usr/bin/inkscape",
		PackageInstallerPath: "/usr/bin/tlmgr",
	},
	Storage: StorageConfig{
		UploadRoot:       "/var/lib/texforge/uploads",
		OutputRoot:       "/var/lib/texforge/outputs",
		MaxFileSizeBytes: 100 * 1024 * 1024,
	},
	Archive: ArchiveConfig{
		ExtractTimeoutSeconds: 120,
		MaxExpansionRatio:     10.0,
		MaxExpandedBytes:      2 * 1024 * 1024 * 1024,
		MaxMemberCount:        50000,
		MaxPathComponentBytes: 255,
	},
	Logging: LoggingConfig{
		Level:  "INFO",
		Format: "text",
		Output: "stdout",
	},
	Metrics: MetricsConfig{
		Enabled: true,
	},
}

// JobWorkDir returns the extraction working directory for a job.
func (c *Config) JobWorkDir(jobID string) string {
	return filepath.Join(c.Storage.UploadRoot, jobID)
}

// JobOutputDir returns the output directory for a job.
func (c *Config) JobOutputDir(jobID string) string {
	return filepath.Join(c.Storage.OutputRoot, jobID)
}

// LoadConfig loads configuration from file and environment variables, in
// that order, then validates the result.
//
// Config file search order:
//  1. Path in TEXFORGE_CONFIG_PATH
//  2. /etc/texforge/texforge-config.yml
//  3. ./config/texforge-config.yml
//  4. ./texforge-config.yml
//
// Returns (config, configPath, error); configPath names the source that
// was actually loaded, or "built-in defaults (no config file found)" if
// no file was found.
func LoadConfig() (*Config, string, error) {
	cfg := DefaultConfig

	path, err := loadFromFile(&cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, path, nil
}

func loadFromFile(cfg *Config) (string, error) {
	configPaths := []string{
		os.Getenv("TEXFORGE_CONFIG_PATH"),
		"/etc/texforge/texforge-config.yml",
		"./config/texforge-config.yml",
		"./texforge-config.yml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}

		return path, nil
	}

	return "built-in defaults (no config file found)", nil
}

// applyEnvOverrides layers the environment variables named in the
// external-interfaces contract over whatever the config file (or the
// defaults) already set. Malformed numeric values are ignored, leaving
// the prior value in place.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxConcurrent = n
		}
	}
	if v := os.Getenv("RETENTION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.RetentionHours = n
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.SweepIntervalSeconds = n
		}
	}
	if v := os.Getenv("DEFAULT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeouts.DefaultTimeoutSeconds = n
		}
	}
	if v := os.Getenv("MAX_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeouts.MaxTimeoutSeconds = n
		}
	}
	if v := os.Getenv("COMPILER_PATH"); v != "" {
		cfg.Tools.CompilerPath = v
	}
	if v := os.Getenv("CONVERTER_PATH"); v != "" {
		cfg.Tools.ConverterPath = v
	}
	if v := os.Getenv("VECTORIZER_PATH"); v != "" {
		cfg.Tools.VectorizerPath = v
	}
	if v := os.Getenv("PACKAGE_INSTALLER_PATH"); v != "" {
		cfg.Tools.PackageInstallerPath = v
	}
	if v := os.Getenv("UPLOAD_ROOT"); v != "" {
		cfg.Storage.UploadRoot = v
	}
	if v := os.Getenv("OUTPUT_ROOT"); v != "" {
		cfg.Storage.OutputRoot = v
	}
	if v := os.Getenv("MAX_FILE_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Storage.MaxFileSizeBytes = n
		}
	}
}

// Validate checks the configuration for internally consistent values.
// It does not check that tool paths exist on disk; a missing executable
// surfaces as a Process Runner precondition failure at invocation time.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxConcurrent < 1 {
		return fmt.Errorf("orchestrator.max_concurrent must be >= 1, got %d", c.Orchestrator.MaxConcurrent)
	}
	if c.Orchestrator.RetentionHours < 1 {
		return fmt.Errorf("orchestrator.retention_hours must be >= 1, got %d", c.Orchestrator.RetentionHours)
	}
	if c.Orchestrator.SweepIntervalSeconds < 1 {
		return fmt.Errorf("orchestrator.sweep_interval_seconds must be >= 1, got %d", c.Orchestrator.SweepIntervalSeconds)
	}
	if c.Timeouts.DefaultTimeoutSeconds < 1 {
		return fmt.Errorf("timeouts.default_timeout_seconds must be >= 1, got %d", c.Timeouts.DefaultTimeoutSeconds)
	}
	if c.Timeouts.MaxTimeoutSeconds < c.Timeouts.DefaultTimeoutSeconds {
		return fmt.Errorf("timeouts.max_timeout_seconds (%d) must be >= default_timeout_seconds (%d)",
			c.Timeouts.MaxTimeoutSeconds, c.Timeouts.DefaultTimeoutSeconds)
	}
	if c.Tools.CompilerPath == "" {
		return fmt.Errorf("tools.compiler_path must not be empty")
	}
	if c.Tools.ConverterPath == "" {
		return fmt.Errorf("tools.converter_path must not be empty")
	}
	if c.Tools.VectorizerPath == "" {
		return fmt.Errorf("tools.vectorizer_path must not be empty")
	}
	if c.Tools.PackageInstallerPath == "" {
		return fmt.Errorf("tools.package_installer_path must not be empty")
	}
	if !filepath.IsAbs(c.Storage.UploadRoot) {
		return fmt.Errorf("storage.upload_root must be an absolute path: %s", c.Storage.UploadRoot)
	}
	if !filepath.IsAbs(c.Storage.OutputRoot) {
		return fmt.Errorf("storage.output_root must be an absolute path: %s", c.Storage.OutputRoot)
	}
	if c.Storage.MaxFileSizeBytes < 1 {
		return fmt.Errorf("storage.max_file_size_bytes must be >= 1, got %d", c.Storage.MaxFileSizeBytes)
	}
	if c.Archive.MaxExpansionRatio <= 0 {
		return fmt.Errorf("archive.max_expansion_ratio must be > 0, got %f", c.Archive.MaxExpansionRatio)
	}
	if c.Archive.MaxMemberCount < 1 {
		return fmt.Errorf("archive.max_member_count must be >= 1, got %d", c.Archive.MaxMemberCount)
	}

	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

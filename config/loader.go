// Copyright (C) 2025 Digital Defiance
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		SkipEnvSubstitution: false,
		SkipValidation:      false,
	}
}

// Load loads configuration with automatic environment detection
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	_ = LoadDotEnv(".env")

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &Config{}
				setDefaults(cfg)
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		errs := ValidateConfiguration(cfg)
		for _, e := range errs {
			if e.Level == "error" {
				return nil, fmt.Errorf("configuration validation failed: %s - %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

// loadConfigFile loads a single config file
func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides config with environment variables, the
// highest-priority source.
func applyEnvironmentOverrides(cfg *Config) {
	if addr := os.Getenv("EECP_RELAY_LISTEN_ADDR"); addr != "" && cfg.Relay != nil {
		cfg.Relay.ListenAddr = addr
	}
	if v := os.Getenv("EECP_RELAY_MAX_PARTICIPANTS"); v != "" && cfg.Relay != nil {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Relay.MaxParticipants = n
		}
	}
	if v := os.Getenv("EECP_RELAY_OPERATIONS_PER_SECOND"); v != "" && cfg.Relay != nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Relay.OperationsPerSecond = f
		}
	}

	if ksType := os.Getenv("EECP_KEYSTORE_TYPE"); ksType != "" && cfg.KeyStore != nil {
		cfg.KeyStore.Type = ksType
	}
	if host := os.Getenv("EECP_POSTGRES_HOST"); host != "" && cfg.KeyStore != nil && cfg.KeyStore.Postgres != nil {
		cfg.KeyStore.Postgres.Host = host
	}

	if logLevel := os.Getenv("EECP_LOG_LEVEL"); logLevel != "" && cfg.Logging != nil {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("EECP_LOG_FORMAT"); logFormat != "" && cfg.Logging != nil {
		cfg.Logging.Format = logFormat
	}

	if os.Getenv("EECP_METRICS_ENABLED") == "true" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = true
	}
	if os.Getenv("EECP_METRICS_ENABLED") == "false" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// ValidationIssue describes one configuration problem found by ValidateConfiguration.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string // "error" or "warning"
}

// ValidateConfiguration checks a loaded Config for values the relay cannot
// run with safely. Warning-level issues are returned but do not fail Load.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Relay != nil {
		if cfg.Relay.MaxParticipants <= 0 {
			issues = append(issues, ValidationIssue{
				Field: "relay.max_participants", Message: "must be positive", Level: "error",
			})
		}
		if cfg.Relay.OperationsPerSecond <= 0 {
			issues = append(issues, ValidationIssue{
				Field: "relay.operations_per_second", Message: "must be positive", Level: "error",
			})
		}
	}

	if cfg.Workspace != nil {
		if cfg.Workspace.GracePeriod <= 0 {
			issues = append(issues, ValidationIssue{
				Field: "workspace_defaults.grace_period", Message: "must be positive", Level: "error",
			})
		}
		if cfg.Workspace.RotationInterval <= cfg.Workspace.GracePeriod {
			issues = append(issues, ValidationIssue{
				Field:   "workspace_defaults.rotation_interval",
				Message: "should exceed grace_period, or keys rotate faster than they are destroyed",
				Level:   "warning",
			})
		}
	}

	if cfg.KeyStore != nil && cfg.KeyStore.Type == "postgres" && cfg.KeyStore.Postgres == nil {
		issues = append(issues, ValidationIssue{
			Field: "keystore.postgres", Message: "postgres keystore selected but no connection settings provided", Level: "error",
		})
	}

	return issues
}

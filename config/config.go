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
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for an eecp-relay process.
type Config struct {
	Environment string                   `yaml:"environment" json:"environment"`
	Relay       *RelayConfig             `yaml:"relay" json:"relay"`
	Workspace   *WorkspaceDefaultsConfig `yaml:"workspace_defaults" json:"workspace_defaults"`
	Cleanup     *CleanupConfig           `yaml:"cleanup" json:"cleanup"`
	KeyStore    *KeyStoreConfig          `yaml:"keystore" json:"keystore"`
	Logging     *LoggingConfig           `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig           `yaml:"metrics" json:"metrics"`
}

// LoadFromFile loads configuration from a file, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing format by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults fills in sensible values when absent from the loaded config:
// 60s cleanup sweep, 1000-entry/1h offline buffer, 60s challenge TTL, and
// reasonable relay/workspace defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Relay == nil {
		cfg.Relay = &RelayConfig{}
	}
	if cfg.Relay.ListenAddr == "" {
		cfg.Relay.ListenAddr = ":8443"
	}
	if cfg.Relay.HandshakeTimeout == 0 {
		cfg.Relay.HandshakeTimeout = 60 * time.Second
	}
	if cfg.Relay.MaxParticipants == 0 {
		cfg.Relay.MaxParticipants = 64
	}
	if cfg.Relay.OperationsPerSecond == 0 {
		cfg.Relay.OperationsPerSecond = 50
	}

	if cfg.Workspace == nil {
		cfg.Workspace = &WorkspaceDefaultsConfig{}
	}
	if cfg.Workspace.RotationInterval == 0 {
		cfg.Workspace.RotationInterval = 1 * time.Hour
	}
	if cfg.Workspace.GracePeriod == 0 {
		cfg.Workspace.GracePeriod = 10 * time.Minute
	}
	if cfg.Workspace.MaxParticipants == 0 {
		cfg.Workspace.MaxParticipants = cfg.Relay.MaxParticipants
	}
	if cfg.Workspace.OperationsPerSecond == 0 {
		cfg.Workspace.OperationsPerSecond = cfg.Relay.OperationsPerSecond
	}

	if cfg.Cleanup == nil {
		cfg.Cleanup = &CleanupConfig{}
	}
	if cfg.Cleanup.SweepInterval == 0 {
		cfg.Cleanup.SweepInterval = 60 * time.Second
	}
	if cfg.Cleanup.OfflineBufferCap == 0 {
		cfg.Cleanup.OfflineBufferCap = 1000
	}
	if cfg.Cleanup.OfflineBufferTTL == 0 {
		cfg.Cleanup.OfflineBufferTTL = 1 * time.Hour
	}
	if cfg.Cleanup.ChallengeTTL == 0 {
		cfg.Cleanup.ChallengeTTL = 60 * time.Second
	}

	if cfg.KeyStore == nil {
		cfg.KeyStore = &KeyStoreConfig{}
	}
	if cfg.KeyStore.Type == "" {
		cfg.KeyStore.Type = "memory"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{Enabled: true}
	}
}

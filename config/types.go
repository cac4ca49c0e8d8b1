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

// Package config loads relay and workspace defaults from YAML/JSON files
// and environment variables.
package config

import "time"

// RelayConfig configures the relay's listener and per-workspace limits.
type RelayConfig struct {
	ListenAddr          string        `yaml:"listen_addr" json:"listen_addr"`
	HandshakeTimeout    time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`
	MaxParticipants     int           `yaml:"max_participants" json:"max_participants"`
	OperationsPerSecond float64       `yaml:"operations_per_second" json:"operations_per_second"`
}

// WorkspaceDefaultsConfig carries the defaults a newly created workspace
// inherits unless overridden at creation time.
type WorkspaceDefaultsConfig struct {
	RotationInterval    time.Duration `yaml:"rotation_interval" json:"rotation_interval"`
	GracePeriod         time.Duration `yaml:"grace_period" json:"grace_period"`
	MaxParticipants     int           `yaml:"max_participants" json:"max_participants"`
	OperationsPerSecond float64       `yaml:"operations_per_second" json:"operations_per_second"`
}

// CleanupConfig configures the temporal cleanup sweep.
type CleanupConfig struct {
	SweepInterval    time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	OfflineBufferCap int           `yaml:"offline_buffer_cap" json:"offline_buffer_cap"`
	OfflineBufferTTL time.Duration `yaml:"offline_buffer_ttl" json:"offline_buffer_ttl"`
	ChallengeTTL      time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`
}

// KeyStoreConfig selects and configures the temporal-key persistence adapter.
type KeyStoreConfig struct {
	Type     string `yaml:"type" json:"type"` // memory, postgres
	Postgres *PostgresConfig `yaml:"postgres" json:"postgres"`
}

// PostgresConfig configures the Postgres-backed keystore adapter.
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format   string `yaml:"format" json:"format"` // json, text
	Output   string `yaml:"output" json:"output"` // stdout, stderr, file path
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics collection configuration. There is no
// Port/Path: the registry is collected in-process, not exposed over HTTP.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

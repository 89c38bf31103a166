// Copyright (C) 2025 sage-x-project
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

// Package config loads and validates the on-disk/environment
// configuration for the depot-server and depot-client binaries.
package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure shared by both
// binaries; a given process only reads the section(s) relevant to it.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Server      *ServerConfig   `yaml:"server" json:"server"`
	Client      *ClientConfig   `yaml:"client" json:"client"`
	Identity    *IdentityConfig `yaml:"identity" json:"identity"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig   `yaml:"health" json:"health"`
}

// ServerConfig configures depot-server.
type ServerConfig struct {
	ListenAddr        string        `yaml:"listen_addr" json:"listen_addr"`
	ShareRoot         string        `yaml:"share_root" json:"share_root"`
	Sandbox           bool          `yaml:"sandbox" json:"sandbox"`
	RequirePSK        bool          `yaml:"require_psk" json:"require_psk"`
	RequireClientAuth bool          `yaml:"require_client_auth" json:"require_client_auth"`
	OverwriteExisting bool          `yaml:"overwrite_existing" json:"overwrite_existing"`
	PSKEnv            string        `yaml:"psk_env" json:"psk_env"`
	PassphraseEnv     string        `yaml:"passphrase_env" json:"passphrase_env"`
	RekeyInterval     time.Duration `yaml:"rekey_interval" json:"rekey_interval"`
	IOTimeout         time.Duration `yaml:"io_timeout" json:"io_timeout"`
	MetricsAddr       string        `yaml:"metrics_addr" json:"metrics_addr"`
	MetricsAuthSecret string        `yaml:"metrics_auth_secret" json:"metrics_auth_secret"`
	AuditDSN          string        `yaml:"audit_dsn" json:"audit_dsn"`
}

// ClientConfig configures depot-client.
type ClientConfig struct {
	RemoteAddr        string        `yaml:"remote_addr" json:"remote_addr"`
	RemoteID          string        `yaml:"remote_id" json:"remote_id"`
	PSKEnv            string        `yaml:"psk_env" json:"psk_env"`
	ClientAuth        bool          `yaml:"client_auth" json:"client_auth"`
	OverwriteExisting bool          `yaml:"overwrite_existing" json:"overwrite_existing"`
	RekeyInterval     time.Duration `yaml:"rekey_interval" json:"rekey_interval"`
}

// IdentityConfig describes where the TOFU pin store, identity keys,
// and client allowlist live on disk.
type IdentityConfig struct {
	Directory     string `yaml:"directory" json:"directory"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a file, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
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

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyDefaults fills in cfg's zero-valued fields, for callers (such as
// a CLI flag that allocates a previously-nil section) that need to
// re-run defaulting after LoadFromFile/Load has already run once.
func ApplyDefaults(cfg *Config) { setDefaults(cfg) }

// setDefaults fills in the values a process needs even when its config
// file is silent about them.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Server != nil {
		if cfg.Server.ListenAddr == "" {
			cfg.Server.ListenAddr = ":9443"
		}
		if cfg.Server.PSKEnv == "" {
			cfg.Server.PSKEnv = "DEPOT_PSK"
		}
		if cfg.Server.PassphraseEnv == "" {
			cfg.Server.PassphraseEnv = "DEPOT_SERVER_PASSPHRASE"
		}
		if cfg.Server.RekeyInterval == 0 {
			cfg.Server.RekeyInterval = 10 * time.Minute
		}
		if cfg.Server.IOTimeout == 0 {
			cfg.Server.IOTimeout = 120 * time.Second
		}
	}

	if cfg.Client != nil {
		if cfg.Client.PSKEnv == "" {
			cfg.Client.PSKEnv = "DEPOT_PSK"
		}
		if cfg.Client.RekeyInterval == 0 {
			cfg.Client.RekeyInterval = 10 * time.Minute
		}
	}

	if cfg.Identity != nil {
		if cfg.Identity.Directory == "" {
			cfg.Identity.Directory = ".depot"
		}
		if cfg.Identity.PassphraseEnv == "" {
			cfg.Identity.PassphraseEnv = "DEPOT_SERVER_PASSPHRASE"
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}
}

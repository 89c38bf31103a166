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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(LoaderOptions{
		ConfigDir:      ".",
		Environment:    "development",
		SkipValidation: true,
	})

	if err != nil {
		t.Fatalf("Failed to load development config: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
}

func TestLoadForEnvironment(t *testing.T) {
	tests := []string{"development", "staging", "production", "local"}

	for _, env := range tests {
		t.Run(env, func(t *testing.T) {
			cfg, err := Load(LoaderOptions{
				ConfigDir:      ".",
				Environment:    env,
				SkipValidation: true,
			})
			if err != nil {
				t.Fatalf("Failed to load %s config: %v", env, err)
			}

			if cfg.Environment != env {
				t.Errorf("Environment = %q, want %q", cfg.Environment, env)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	os.Setenv("DEPOT_REMOTE_ADDR", "override-host:9443")
	os.Setenv("DEPOT_LOG_LEVEL", "debug")
	defer os.Unsetenv("DEPOT_REMOTE_ADDR")
	defer os.Unsetenv("DEPOT_LOG_LEVEL")

	cfg, err := Load(LoaderOptions{
		ConfigDir:      ".",
		Environment:    "development",
		SkipValidation: true,
	})
	cfg.Client = &ClientConfig{}
	cfg.Logging = &LoggingConfig{}
	applyEnvironmentOverrides(cfg)

	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Client.RemoteAddr != "override-host:9443" {
		t.Errorf("RemoteAddr = %q, want %q", cfg.Client.RemoteAddr, "override-host:9443")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadWithCustomConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	testConfig := `
environment: test
logging:
  level: info
  format: json
`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(LoaderOptions{
		ConfigDir:      tmpDir,
		Environment:    "test",
		SkipValidation: true,
	})

	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg == nil {
		t.Fatal("Config should not be nil")
	}
}

func TestDefaultLoaderOptions(t *testing.T) {
	opts := DefaultLoaderOptions()

	if opts.ConfigDir != "config" {
		t.Errorf("ConfigDir = %q, want %q", opts.ConfigDir, "config")
	}

	if opts.SkipEnvSubstitution {
		t.Error("SkipEnvSubstitution should be false by default")
	}

	if opts.SkipValidation {
		t.Error("SkipValidation should be false by default")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.Environment != "development" {
		t.Errorf("Default environment = %q, want %q", cfg.Environment, "development")
	}
}

func TestServerConfigDefaults(t *testing.T) {
	cfg := &Config{Server: &ServerConfig{}}
	setDefaults(cfg)

	if cfg.Server.ListenAddr != ":9443" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":9443")
	}
	if cfg.Server.PSKEnv != "DEPOT_PSK" {
		t.Errorf("PSKEnv = %q, want %q", cfg.Server.PSKEnv, "DEPOT_PSK")
	}
	if cfg.Server.RekeyInterval == 0 {
		t.Error("RekeyInterval should have a default value")
	}
}

func TestValidateConfigurationRequiresShareRoot(t *testing.T) {
	cfg := &Config{Server: &ServerConfig{}}
	setDefaults(cfg)

	issues := ValidateConfiguration(cfg)
	found := false
	for _, issue := range issues {
		if issue.Field == "server.share_root" && issue.Level == "error" {
			found = true
		}
	}
	if !found {
		t.Error("expected a share_root validation error when unset")
	}
}

func TestValidateConfigurationRequiresRemoteAddr(t *testing.T) {
	cfg := &Config{Client: &ClientConfig{}}
	setDefaults(cfg)

	issues := ValidateConfiguration(cfg)
	found := false
	for _, issue := range issues {
		if issue.Field == "client.remote_addr" && issue.Level == "error" {
			found = true
		}
	}
	if !found {
		t.Error("expected a remote_addr validation error when unset")
	}
}

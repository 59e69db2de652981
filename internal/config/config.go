// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config implements the project configuration file,
// .syzdescriptor/project.yaml, following the teacher's .cie/project.yaml
// shape: a typed struct, a DefaultConfig constructor, and environment
// variable overrides applied on load.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dir is the project-local config directory name.
const Dir = ".syzdescriptor"

// FileName is the config file name inside Dir.
const FileName = "project.yaml"

// Syscall is one (dispatch_type_name, slot_name) pair from the supported
// syscalls list (spec §4.1).
type Syscall struct {
	DispatchType string `yaml:"dispatch_type"`
	Slot         string `yaml:"slot"`
}

// String renders as "dispatch_type:slot", the original CLI's own notation.
func (s Syscall) String() string { return s.DispatchType + ":" + s.Slot }

// DefaultSyscalls is the built-in supported-syscalls list (spec §4.1,
// original_source/driver.py's SUPPORTED_SYSCALLS).
func DefaultSyscalls() []Syscall {
	return []Syscall{
		{DispatchType: "file_operations", Slot: "unlocked_ioctl"},
		{DispatchType: "proc_ops", Slot: "proc_ioctl"},
		{DispatchType: "uart_ops", Slot: "ioctl"},
	}
}

// Config is the parsed project.yaml.
type Config struct {
	Version      int       `yaml:"version"`
	CodeDBPath   string    `yaml:"codedb_path"`
	OutputDir    string    `yaml:"output_dir"`
	Architecture string    `yaml:"architecture"`
	Syscalls     []Syscall `yaml:"syscalls"`
	FOKAPath     string    `yaml:"foka_path"`
	MetricsAddr  string    `yaml:"metrics_addr"`
}

// DefaultConfig builds the config written by `syzdescriptor init`.
func DefaultConfig(codedbPath string) *Config {
	return &Config{
		Version:      1,
		CodeDBPath:   codedbPath,
		OutputDir:    "./syzdescriptor_out/",
		Architecture: "arm64",
		Syscalls:     DefaultSyscalls(),
		FOKAPath:     "",
		MetricsAddr:  "",
	}
}

// applyEnvOverrides lets a handful of environment variables override the
// parsed file, matching the teacher's getEnv() pattern in cmd/cie/config.go.
func (c *Config) applyEnvOverrides() {
	c.CodeDBPath = getEnv("SYZDESCRIPTOR_CODEDB_PATH", c.CodeDBPath)
	c.OutputDir = getEnv("SYZDESCRIPTOR_OUTPUT_DIR", c.OutputDir)
	c.Architecture = getEnv("SYZDESCRIPTOR_ARCH", c.Architecture)
	c.MetricsAddr = getEnv("SYZDESCRIPTOR_METRICS_ADDR", c.MetricsAddr)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.applyEnvOverrides()
	return &c, nil
}

// Write serializes c as YAML to path, creating parent directories as needed.
func Write(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ValidateSyscalls rejects any configured syscall not in the supported set
// (spec §9 supplemented feature, driver.py's __validate_targeted_syscalls).
func ValidateSyscalls(target []Syscall) error {
	supported := make(map[string]bool)
	for _, s := range DefaultSyscalls() {
		supported[s.String()] = true
	}
	for _, s := range target {
		if !supported[s.String()] {
			return fmt.Errorf("unsupported syscall: %s", s)
		}
	}
	return nil
}

/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package config loads run settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/riverundertheotter/os-project1/internal/logging"
)

// Executors
const (
	ExecutorProcess   = "process"
	ExecutorGoroutine = "goroutine"
)

// Environment variables that override file settings
const (
	EnvWorkers     = "SHMSCAN_WORKERS"
	EnvExecutor    = "SHMSCAN_EXECUTOR"
	EnvLogLevel    = "SHMSCAN_LOG_LEVEL"
	EnvLogFormat   = "SHMSCAN_LOG_FORMAT"
	EnvMetricsFile = "SHMSCAN_METRICS_FILE"
	EnvShmDir      = "SHMSCAN_SHM_DIR"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the settings of one scan run.
type Config struct {
	// Workers is the number of workers per round.
	Workers int `yaml:"workers"`

	// Executor selects how workers run: one OS process per segment, or one
	// goroutine per segment inside this process.
	Executor string `yaml:"executor"`

	Log logging.Config `yaml:"log"`

	// MetricsFile, when set, receives a Prometheus text exposition of the
	// run's metrics.
	MetricsFile string `yaml:"metrics_file"`

	// ShmDir holds shared memory segment files. Empty selects /dev/shm.
	ShmDir string `yaml:"shm_dir"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Workers:  1,
		Executor: ExecutorProcess,
		Log: logging.Config{
			Level:  "info",
			Format: logging.FormatAuto,
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from SHMSCAN_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		w, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, EnvWorkers, v)
		}
		c.Workers = w
	}
	if v, ok := os.LookupEnv(EnvExecutor); ok {
		c.Executor = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := os.LookupEnv(EnvMetricsFile); ok {
		c.MetricsFile = v
	}
	if v, ok := os.LookupEnv(EnvShmDir); ok {
		c.ShmDir = v
	}
	return nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	}
	switch c.Executor {
	case ExecutorProcess, ExecutorGoroutine:
	default:
		return fmt.Errorf("%w: unknown executor %q", ErrInvalid, c.Executor)
	}
	switch c.Log.Format {
	case "", logging.FormatAuto, logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

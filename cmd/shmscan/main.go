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

// Command shmscan computes the inclusive prefix sums of a file of integers
// with a parallel Hillis-Steele scan.
//
// Usage:
//
//	shmscan [flags] <num_elements> <num_workers> <input_file> <output_file>
//
// The input file holds whitespace separated integers; the first
// num_elements of them are scanned. The output file receives one prefix sum
// per line. By default every worker of every round is a separate process
// sharing the buffers through /dev/shm.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/riverundertheotter/os-project1/internal/config"
	"github.com/riverundertheotter/os-project1/internal/logging"
	"github.com/riverundertheotter/os-project1/internal/metrics"
	"github.com/riverundertheotter/os-project1/internal/scan"
	"github.com/riverundertheotter/os-project1/internal/seqio"
	"github.com/riverundertheotter/os-project1/internal/worker"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usageLine = "usage: shmscan [flags] <num_elements> <num_workers> <input_file> <output_file>"

var errUsage = errors.New("usage error")

func main() {
	if len(os.Args) > 1 && os.Args[1] == worker.WorkerCommand {
		os.Exit(serveWorker(os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// serveWorker is the entry point of a worker process.
func serveWorker(args []string) int {
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "shmscan worker: %v\n", err)
		return exitError
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmscan worker: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	if err := worker.Serve(args, logger.Named("worker").With(zap.Int("pid", os.Getpid()))); err != nil {
		logger.Error("worker failed", zap.Error(err))
		return exitError
	}
	return exitOK
}

// invocation is a parsed command line.
type invocation struct {
	cfg    *config.Config
	n      int
	input  string
	output string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	inv, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "shmscan: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, usageLine)
			return exitUsage
		}
		return exitError
	}

	logger, err := logging.New(inv.cfg.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "shmscan: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	if err := scanFile(ctx, inv, logger); err != nil {
		logger.Error("scan failed", zap.Error(err))
		return exitError
	}

	fmt.Fprintf(stdout, "Output written to: %s\n", inv.output)
	return exitOK
}

func parseArgs(args []string, stderr io.Writer) (*invocation, error) {
	fs := flag.NewFlagSet("shmscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	executor := fs.String("executor", "", "worker executor: process or goroutine")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")
	logFormat := fs.String("log-format", "", "log format: auto, console or json")
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics to this file")
	shmDir := fs.String("shm-dir", "", "directory for shared memory segment files")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 4 {
		return nil, fmt.Errorf("%w: expected 4 arguments, got %d", errUsage, fs.NArg())
	}

	n, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return nil, fmt.Errorf("%w: num_elements: %v", errUsage, err)
	}
	workers, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return nil, fmt.Errorf("%w: num_workers: %v", errUsage, err)
	}

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	// Flags and positional arguments override file and environment.
	cfg.Workers = workers
	if *executor != "" {
		cfg.Executor = *executor
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *metricsFile != "" {
		cfg.MetricsFile = *metricsFile
	}
	if *shmDir != "" {
		cfg.ShmDir = *shmDir
	}

	if err := scan.Validate(n, cfg.Workers); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &invocation{cfg: cfg, n: n, input: fs.Arg(2), output: fs.Arg(3)}, nil
}

// scanFile reads the input, runs the scan and writes the output. Nothing is
// written unless the scan succeeded.
func scanFile(ctx context.Context, inv *invocation, logger *zap.Logger) (err error) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	if inv.cfg.MetricsFile != "" {
		defer func() {
			if werr := prometheus.WriteToTextfile(inv.cfg.MetricsFile, reg); werr != nil {
				logger.Warn("writing metrics failed", zap.String("path", inv.cfg.MetricsFile), zap.Error(werr))
			}
		}()
	}

	input, err := seqio.ReadFile(inv.input, inv.n)
	if err != nil {
		return err
	}

	res, err := scan.Run(ctx, input, inv.cfg.Workers,
		scan.WithExecutor(newExecutor(inv.cfg, logger)),
		scan.WithLogger(logger),
		scan.WithMetrics(rec),
	)
	if err != nil {
		return err
	}

	return seqio.WriteFile(inv.output, res.Output)
}

func newExecutor(cfg *config.Config, logger *zap.Logger) scan.Executor {
	if cfg.Executor == config.ExecutorGoroutine {
		return scan.GoroutineExecutor{}
	}
	e := worker.NewProcessExecutor(cfg.ShmDir, logger.Named("executor"))
	// Workers log with the parent's settings.
	e.Env = []string{
		config.EnvLogLevel + "=" + cfg.Log.Level,
		config.EnvLogFormat + "=" + cfg.Log.Format,
	}
	return e
}

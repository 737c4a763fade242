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

package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/riverundertheotter/os-project1/internal/scan"
	"github.com/riverundertheotter/os-project1/internal/shm"
)

// WorkerCommand is the first argument that puts the binary in worker mode.
const WorkerCommand = "__worker"

// ProcessExecutor runs each worker of a round as its own OS process.
type ProcessExecutor struct {
	// Dir holds segment files. Empty selects /dev/shm.
	Dir string

	// Env is appended to the environment of every worker process.
	Env []string

	// Command builds the worker process for the given worker arguments.
	// Defaults to re-executing the current binary with WorkerCommand.
	Command func(ctx context.Context, args []string) *exec.Cmd

	Logger *zap.Logger
}

// NewProcessExecutor returns an executor placing segments in dir.
func NewProcessExecutor(dir string, logger *zap.Logger) *ProcessExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessExecutor{Dir: dir, Logger: logger}
}

// Allocate creates a uniquely named shared memory segment of n elements.
func (e *ProcessExecutor) Allocate(n int) (scan.Buffers, error) {
	path := shm.SegmentPath(e.Dir, uuid.NewString())
	seg, err := shm.Create(path, n)
	if err != nil {
		return nil, err
	}
	e.logger().Debug("segment created", zap.String("path", path), zap.Int("n", n), zap.Int("bytes", len(seg.Mem)))
	return seg, nil
}

// RunRound starts one process per segment, waits for all of them and fails
// the round if any process exited abnormally or did not report completion.
func (e *ProcessExecutor) RunRound(ctx context.Context, bufs scan.Buffers, segments []scan.Segment, step int) error {
	seg, ok := bufs.(*shm.Segment)
	if !ok {
		return fmt.Errorf("process executor needs a shared memory segment, got %T", bufs)
	}

	seg.H.SetStep(uint64(step))
	seg.H.ResetCompleted()

	log := e.logger().With(zap.Int("step", step))
	errs := make([]error, len(segments))
	cmds := make([]*exec.Cmd, len(segments))

	for i, s := range segments {
		cmd := e.command(ctx, Args(seg.Path, s, step))
		if err := cmd.Start(); err != nil {
			errs[i] = &scan.WorkerError{Worker: i, Segment: s, Step: step, Err: fmt.Errorf("start: %w", err)}
			continue
		}
		cmds[i] = cmd
		log.Debug("worker started", zap.Int("worker", i), zap.Stringer("segment", s), zap.Int("pid", cmd.Process.Pid))
	}

	// Barrier: every started process is reaped before the round can end.
	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}
		start := time.Now()
		if err := cmd.Wait(); err != nil {
			errs[i] = &scan.WorkerError{Worker: i, Segment: segments[i], Step: step, Err: err}
			continue
		}
		log.Debug("worker exited", zap.Int("worker", i), zap.Duration("waited", time.Since(start)))
	}

	if err := multierr.Combine(errs...); err != nil {
		return err
	}

	if got, want := seg.H.Completed(), uint32(len(segments)); got != want {
		return fmt.Errorf("%w: %d of %d workers reported completion at step %d", scan.ErrWorkerFailed, got, want, step)
	}
	return nil
}

// Args returns the worker argument vector for one segment of one round.
func Args(path string, s scan.Segment, step int) []string {
	return []string{
		"-segment", path,
		"-start", strconv.Itoa(s.Start),
		"-end", strconv.Itoa(s.End),
		"-step", strconv.Itoa(step),
	}
}

func (e *ProcessExecutor) command(ctx context.Context, args []string) *exec.Cmd {
	var cmd *exec.Cmd
	if e.Command != nil {
		cmd = e.Command(ctx, args)
	} else {
		exe, err := os.Executable()
		if err != nil {
			exe = os.Args[0]
		}
		cmd = exec.CommandContext(ctx, exe, append([]string{WorkerCommand}, args...)...)
	}

	if len(e.Env) > 0 {
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		cmd.Env = append(cmd.Env, e.Env...)
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd
}

func (e *ProcessExecutor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

//go:build unix

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
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/riverundertheotter/os-project1/internal/scan"
	"github.com/riverundertheotter/os-project1/internal/shm"
)

const (
	helperFlag    = "-test.run=HelperScanWorker"
	helperModeEnv = "SHMSCAN_HELPER_MODE"
)

func TestMain(m *testing.M) {
	// Check if this is a helper worker process
	if len(os.Args) >= 3 && os.Args[1] == helperFlag {
		os.Exit(runHelperWorker(os.Args[3:]))
	}
	os.Exit(m.Run())
}

// runHelperWorker implements the worker helper process. The mode variable
// lets tests simulate workers that crash or exit without doing their work.
func runHelperWorker(args []string) int {
	switch os.Getenv(helperModeEnv) {
	case "crash":
		fmt.Fprintln(os.Stderr, "helper worker crashing on purpose")
		return 3
	case "silent":
		return 0
	case "hang":
		time.Sleep(time.Minute)
		return 0
	case "sigkill":
		syscall.Kill(os.Getpid(), syscall.SIGKILL)
		time.Sleep(time.Minute)
		return 0
	}
	if err := Serve(args, nil); err != nil {
		fmt.Fprintf(os.Stderr, "helper worker: %v\n", err)
		return 1
	}
	return 0
}

// helperExecutor returns a ProcessExecutor whose workers are this test
// binary running runHelperWorker in the given mode.
func helperExecutor(t *testing.T, mode string) *ProcessExecutor {
	t.Helper()

	e := NewProcessExecutor(t.TempDir(), zaptest.NewLogger(t))
	e.Env = []string{helperModeEnv + "=" + mode}
	e.Command = func(ctx context.Context, args []string) *exec.Cmd {
		return exec.CommandContext(ctx, os.Args[0], append([]string{helperFlag, "--"}, args...)...)
	}
	return e
}

func TestProcessExecutorScenarios(t *testing.T) {
	tests := []struct {
		name    string
		input   []int64
		workers int
		want    []int64
	}{
		{"four ones", []int64{1, 1, 1, 1}, 2, []int64{1, 2, 3, 4}},
		{"six elements three workers", []int64{2, 3, 5, 1, 4, 6}, 3, []int64{2, 5, 10, 11, 15, 21}},
		{"more workers than elements", []int64{5}, 3, []int64{5}},
		{"empty segments", []int64{1, 2, 3}, 5, []int64{1, 3, 6}},
		{"remainder on last worker", []int64{1, -1, 2, -2, 3, -3, 4, -4, 5, -5, 6}, 4, []int64{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := helperExecutor(t, "")
			res, err := scan.Run(context.Background(), tt.input, tt.workers, scan.WithExecutor(e))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Output)

			entries, err := os.ReadDir(e.Dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "segment file must be removed after the run")
		})
	}
}

func TestProcessExecutorCrashedWorkerFailsRun(t *testing.T) {
	e := helperExecutor(t, "crash")

	res, err := scan.Run(context.Background(), []int64{1, 2, 3, 4}, 2, scan.WithExecutor(e))
	assert.Nil(t, res)
	require.ErrorIs(t, err, scan.ErrWorkerFailed)

	failures := multierr.Errors(unwrapRound(err))
	assert.Len(t, failures, 2, "every crashed worker is reported")
	for _, f := range failures {
		var we *scan.WorkerError
		require.ErrorAs(t, f, &we)
		assert.Equal(t, 1, we.Step)

		var exitErr *exec.ExitError
		require.ErrorAs(t, f, &exitErr)
		assert.Equal(t, 3, exitErr.ExitCode())
	}

	entries, err := os.ReadDir(e.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "segment file must be removed after a failed run")
}

func TestProcessExecutorDetectsSilentWorker(t *testing.T) {
	e := helperExecutor(t, "silent")

	_, err := scan.Run(context.Background(), []int64{1, 2, 3}, 3, scan.WithExecutor(e))
	require.ErrorIs(t, err, scan.ErrWorkerFailed)
	assert.ErrorContains(t, err, "0 of 3 workers reported completion")
}

func TestProcessExecutorStartFailure(t *testing.T) {
	e := NewProcessExecutor(t.TempDir(), zaptest.NewLogger(t))
	e.Command = func(ctx context.Context, args []string) *exec.Cmd {
		return exec.CommandContext(ctx, "/nonexistent/shmscan-worker", args...)
	}

	_, err := scan.Run(context.Background(), []int64{1, 2}, 2, scan.WithExecutor(e))
	require.ErrorIs(t, err, scan.ErrWorkerFailed)
	assert.Len(t, multierr.Errors(unwrapRound(err)), 2)
}

func TestProcessExecutorCanceledBeforeRound(t *testing.T) {
	e := helperExecutor(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := scan.Run(ctx, []int64{1, 2}, 2, scan.WithExecutor(e))
	assert.Nil(t, res)
	require.ErrorIs(t, err, scan.ErrWorkerFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "worker 0 on [0, 1) at step 1: start: context canceled")

	entries, err := os.ReadDir(e.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "segment file must be removed after a canceled run")
}

func TestProcessExecutorCancelKillsRunningWorkers(t *testing.T) {
	e := helperExecutor(t, "hang")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := scan.Run(ctx, []int64{1, 2, 3, 4}, 2, scan.WithExecutor(e))
	assert.Nil(t, res)
	require.ErrorIs(t, err, scan.ErrWorkerFailed)
	assert.Len(t, multierr.Errors(unwrapRound(err)), 2, "every killed worker is reported")
	assert.Less(t, time.Since(start), 30*time.Second, "cancellation must not wait for hung workers")

	entries, err := os.ReadDir(e.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessExecutorWorkerKilledMidRound(t *testing.T) {
	e := helperExecutor(t, "sigkill")

	_, err := scan.Run(context.Background(), []int64{1, 2, 3}, 1, scan.WithExecutor(e))
	require.ErrorIs(t, err, scan.ErrWorkerFailed)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.True(t, status.Signaled())
	assert.Equal(t, syscall.SIGKILL, status.Signal())

	entries, err := os.ReadDir(e.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessExecutorRejectsHeapBuffers(t *testing.T) {
	e := NewProcessExecutor(t.TempDir(), nil)
	err := e.RunRound(context.Background(), scan.NewHeapBuffers(2), scan.Partition(2, 1), 1)
	assert.ErrorContains(t, err, "needs a shared memory segment")
}

func TestServeAppliesStep(t *testing.T) {
	path := shm.SegmentPath(t.TempDir(), "serve")
	seg, err := shm.Create(path, 6)
	require.NoError(t, err)
	t.Cleanup(func() { seg.Close() })

	copy(seg.Current(), []int64{2, 3, 5, 1, 4, 6})
	seg.H.SetStep(2)

	require.NoError(t, Serve(Args(path, scan.Segment{Start: 2, End: 4}, 2), zaptest.NewLogger(t)))
	require.NoError(t, Serve(Args(path, scan.Segment{Start: 0, End: 0}, 2), nil))

	assert.Equal(t, []int64{0, 0, 7, 4, 0, 0}, seg.Next())
	assert.Equal(t, uint32(2), seg.H.Completed())
	assert.True(t, shm.Exists(path), "workers must not remove the segment")
}

func TestServeRejectsBadArguments(t *testing.T) {
	path := shm.SegmentPath(t.TempDir(), "bad-args")
	seg, err := shm.Create(path, 4)
	require.NoError(t, err)
	t.Cleanup(func() { seg.Close() })
	seg.H.SetStep(1)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-bogus"}},
		{"missing segment", []string{"-start", "0", "-end", "1", "-step", "1"}},
		{"zero step", Args(path, scan.Segment{Start: 0, End: 1}, 0)},
		{"inverted range", Args(path, scan.Segment{Start: 3, End: 1}, 1)},
		{"range past end", Args(path, scan.Segment{Start: 2, End: 5}, 1)},
		{"stale step", Args(path, scan.Segment{Start: 0, End: 2}, 2)},
		{"missing file", Args(path+"-missing", scan.Segment{Start: 0, End: 1}, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Serve(tt.args, nil))
		})
	}
	assert.Zero(t, seg.H.Completed())
}

func TestArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-segment", "/dev/shm/x", "-start", "3", "-end", "7", "-step", "4"},
		Args("/dev/shm/x", scan.Segment{Start: 3, End: 7}, 4))
}

// unwrapRound strips the driver's round context to reach the executor error.
func unwrapRound(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}

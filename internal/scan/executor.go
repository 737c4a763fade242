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

package scan

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Executor allocates a run's buffer pair and runs the workers of one round.
//
// RunRound starts exactly one worker per segment, each applying Step at the
// given step to its own segment, and returns only after every worker has
// terminated. It reports every failed worker, not just the first.
type Executor interface {
	Allocate(n int) (Buffers, error)
	RunRound(ctx context.Context, bufs Buffers, segments []Segment, step int) error
}

// GoroutineExecutor runs each worker as a goroutine over heap buffers.
type GoroutineExecutor struct{}

// Allocate returns heap buffers of n elements.
func (GoroutineExecutor) Allocate(n int) (bufs Buffers, err error) {
	// make panics on lengths the runtime cannot satisfy.
	defer func() {
		if r := recover(); r != nil {
			bufs, err = nil, fmt.Errorf("allocate %d elements: %v", n, r)
		}
	}()
	return NewHeapBuffers(n), nil
}

// RunRound runs one goroutine per segment and waits for all of them.
func (GoroutineExecutor) RunRound(ctx context.Context, bufs Buffers, segments []Segment, step int) error {
	src := NewSource(bufs.Current())
	next := bufs.Next()

	errs := make([]error, len(segments))
	var g errgroup.Group
	for i, seg := range segments {
		g.Go(func() error {
			errs[i] = runLane(ctx, i, seg, step, src, next)
			return errs[i]
		})
	}

	// Wait returns only after every goroutine finished.
	if err := g.Wait(); err == nil {
		return nil
	}
	return multierr.Combine(errs...)
}

// runLane executes one worker, turning a panic into a WorkerError.
func runLane(ctx context.Context, worker int, seg Segment, step int, src Source, next []int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerError{Worker: worker, Segment: seg, Step: step, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return &WorkerError{Worker: worker, Segment: seg, Step: step, Err: err}
	}
	if seg.Empty() {
		return nil
	}
	Step(src, NewLane(next, seg), step)
	return nil
}

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
	"errors"
)

// trackedBuffers records whether the run released its buffer pair.
type trackedBuffers struct {
	*HeapBuffers
	closed   bool
	closeErr error
}

func (b *trackedBuffers) Close() error {
	b.closed = true
	b.HeapBuffers.Close()
	return b.closeErr
}

// countingExecutor runs rounds in-process and can inject failures.
type countingExecutor struct {
	GoroutineExecutor

	allocErr   error
	closeErr   error
	failAtStep int

	allocations int
	rounds      int
	bufs        *trackedBuffers
}

func (e *countingExecutor) Allocate(n int) (Buffers, error) {
	e.allocations++
	if e.allocErr != nil {
		return nil, e.allocErr
	}
	e.bufs = &trackedBuffers{HeapBuffers: NewHeapBuffers(n), closeErr: e.closeErr}
	return e.bufs, nil
}

func (e *countingExecutor) RunRound(ctx context.Context, bufs Buffers, segments []Segment, step int) error {
	e.rounds++
	if step == e.failAtStep {
		return &WorkerError{Worker: len(segments) - 1, Segment: segments[len(segments)-1], Step: step, Err: errors.New("exit status 3")}
	}
	return e.GoroutineExecutor.RunRound(ctx, bufs, segments, step)
}

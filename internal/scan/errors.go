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
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the run is rejected before any
	// buffer is allocated or worker started.
	ErrInvalidConfig = errors.New("invalid scan configuration")

	// ErrAllocation is returned when the buffer pair cannot be allocated.
	ErrAllocation = errors.New("buffer allocation failed")

	// ErrWorkerFailed is matched by every worker failure.
	ErrWorkerFailed = errors.New("scan worker failed")
)

// WorkerError reports one worker that terminated abnormally.
type WorkerError struct {
	Worker  int
	Segment Segment
	Step    int
	Err     error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d on %v at step %d: %v", e.Worker, e.Segment, e.Step, e.Err)
}

// Unwrap lets errors.Is match both ErrWorkerFailed and the cause.
func (e *WorkerError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrWorkerFailed}
	}
	return []error{ErrWorkerFailed, e.Err}
}

// Validate rejects sequence lengths and worker counts below one.
func Validate(n, workers int) error {
	if n < 1 {
		return fmt.Errorf("%w: sequence length must be at least 1, got %d", ErrInvalidConfig, n)
	}
	if workers < 1 {
		return fmt.Errorf("%w: worker count must be at least 1, got %d", ErrInvalidConfig, workers)
	}
	return nil
}

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
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/riverundertheotter/os-project1/internal/metrics"
)

// Options configures a run.
type Options struct {
	// Executor runs the workers. Defaults to GoroutineExecutor.
	Executor Executor

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics may be nil.
	Metrics *metrics.Recorder

	// Observer, if set, is called after each round's swap with a copy of
	// the new current buffer.
	Observer func(RoundReport)
}

// Option modifies Options.
type Option func(*Options)

// WithExecutor selects how workers run.
func WithExecutor(e Executor) Option {
	return func(o *Options) { o.Executor = e }
}

// WithLogger sets the run logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics records the run into m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithObserver registers a per-round callback.
func WithObserver(fn func(RoundReport)) Option {
	return func(o *Options) { o.Observer = fn }
}

// RoundReport describes the state after one round.
type RoundReport struct {
	Round   int
	Step    int
	Current []int64
}

// Result is a finished run.
type Result struct {
	// Output holds the inclusive prefix sums of the input.
	Output []int64

	// Rounds is the number of rounds run: ceil(log2 n), or 0 for n == 1.
	Rounds int

	// Segments is the partition used for every round.
	Segments []Segment
}

type runner struct {
	opts     Options
	log      *zap.Logger
	segments []Segment
	bufs     Buffers
}

// Run computes the inclusive prefix sums of input with workers workers per
// round. The input is not modified. On error no output is returned.
func Run(ctx context.Context, input []int64, workers int, opts ...Option) (res *Result, err error) {
	n := len(input)
	if err := Validate(n, workers); err != nil {
		return nil, err
	}

	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Executor == nil {
		o.Executor = GoroutineExecutor{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	r := &runner{
		opts:     o,
		log:      o.Logger.With(zap.Int("n", n), zap.Int("workers", workers)),
		segments: Partition(n, workers),
	}

	o.Metrics.RunStarted(n, workers)
	defer func() { o.Metrics.RunFinished(err) }()

	r.bufs, err = o.Executor.Allocate(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	defer func() {
		if cerr := r.bufs.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("release buffers: %w", cerr))
			res = nil
		}
	}()

	start := time.Now()
	r.log.Info("scan started", zap.Stringers("segments", r.segments))

	copy(r.bufs.Current(), input)

	rounds, err := r.drive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]int64, n)
	copy(out, r.bufs.Current())

	r.log.Info("scan finished", zap.Int("rounds", rounds), zap.Duration("elapsed", time.Since(start)))
	return &Result{Output: out, Rounds: rounds, Segments: r.segments}, nil
}

// drive runs rounds at steps 1, 2, 4, ... while the step is below n, swapping
// the buffer roles after each barrier.
func (r *runner) drive(ctx context.Context) (int, error) {
	n := r.bufs.Len()
	rounds := 0
	for step := 1; step <= n-1; step *= 2 {
		if err := r.runRound(ctx, rounds+1, step); err != nil {
			return rounds, err
		}
		r.bufs.Swap()
		rounds++

		if r.opts.Observer != nil {
			cur := make([]int64, n)
			copy(cur, r.bufs.Current())
			r.opts.Observer(RoundReport{Round: rounds, Step: step, Current: cur})
		}
	}
	return rounds, nil
}

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
)

// runRound is the barrier for one round: it hands the round to the executor
// and returns once every worker has terminated.
func (r *runner) runRound(ctx context.Context, round, step int) error {
	log := r.log.With(zap.Int("round", round), zap.Int("step", step))
	log.Debug("round started", zap.Int("workers", len(r.segments)))

	start := time.Now()
	err := r.opts.Executor.RunRound(ctx, r.bufs, r.segments, step)
	elapsed := time.Since(start)

	if err != nil {
		failed := multierr.Errors(err)
		r.opts.Metrics.WorkersFailed(len(failed))
		log.Error("round failed", zap.Int("failed_workers", len(failed)), zap.Duration("elapsed", elapsed), zap.Error(err))
		return fmt.Errorf("round %d at step %d: %w", round, step, err)
	}

	r.opts.Metrics.RoundFinished(elapsed)
	log.Debug("round finished", zap.Duration("elapsed", elapsed))
	return nil
}

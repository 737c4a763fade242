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
	"errors"
	"flag"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/riverundertheotter/os-project1/internal/scan"
	"github.com/riverundertheotter/os-project1/internal/shm"
)

// Serve is the body of a worker process. It maps the segment named by args,
// applies one scan step to its own segment and records completion.
func Serve(args []string, logger *zap.Logger) (err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fs := flag.NewFlagSet(WorkerCommand, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("segment", "", "shared memory segment file")
	start := fs.Int("start", -1, "first index of the segment")
	end := fs.Int("end", -1, "index one past the end of the segment")
	step := fs.Int("step", 0, "scan step of the round")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse worker arguments: %w", err)
	}

	if *path == "" {
		return errors.New("missing -segment")
	}
	if *step < 1 {
		return fmt.Errorf("step must be positive, got %d", *step)
	}
	s := scan.Segment{Start: *start, End: *end}
	if s.Start < 0 || s.End < s.Start {
		return fmt.Errorf("invalid segment %v", s)
	}

	seg, err := shm.Open(*path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, seg.Close()) }()

	if got := seg.H.Step(); got != uint64(*step) {
		return fmt.Errorf("segment is at step %d, worker asked for step %d", got, *step)
	}
	if s.End > seg.Len() {
		return fmt.Errorf("segment %v exceeds buffer length %d", s, seg.Len())
	}

	if s.Empty() {
		seg.H.MarkCompleted()
		logger.Debug("empty segment, nothing to do", zap.Int("step", *step))
		return nil
	}

	scan.Step(scan.NewSource(seg.Current()), scan.NewLane(seg.Next(), s), *step)
	seg.H.MarkCompleted()

	logger.Debug("worker finished", zap.Stringer("segment", s), zap.Int("step", *step))
	return nil
}

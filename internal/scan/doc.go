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

// Package scan computes inclusive prefix sums with the Hillis-Steele
// algorithm.
//
// The sequence is split once into contiguous segments, one per worker. Each
// round at step s fans out one worker per segment; a worker reads the
// current buffer and writes only its own segment of the next buffer:
//
//	next[i] = current[i] + current[i-s]  if i >= s
//	next[i] = current[i]                 otherwise
//
// The round ends when every worker has terminated. Only then are the buffer
// roles swapped and the step doubled. The run stops once the step exceeds
// n-1, at which point the current buffer holds the prefix sums.
//
// Workers are run by an Executor. GoroutineExecutor runs them inside this
// process over heap buffers; the worker package runs each one as a separate
// OS process over a shared memory segment.
package scan

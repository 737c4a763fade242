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

// Package worker runs scan workers as separate OS processes that share the
// run's buffer pair through a memory-mapped segment.
//
// For every round the ProcessExecutor starts one process per segment by
// re-executing the current binary with the WorkerCommand argument. Each
// process maps the segment, applies one scan step to its own segment of the
// next buffer, records its completion in the segment header and exits. The
// executor waits for every process, so the round's barrier is the set of
// exit statuses.
package worker

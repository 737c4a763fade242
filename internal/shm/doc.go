/*
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
 */

// Package shm provides a shared memory buffer pair for the parallel scan.
//
// A segment is a memory-mapped file holding a small header followed by two
// int64 arrays of equal length. One array plays the "current" role and the
// other the "next" role; the role assignment lives in the header so every
// process that maps the segment resolves the same roles. The process that
// creates a segment owns it and removes the backing file on Close. Worker
// processes open the segment by path, operate on their own index range, and
// report completion through an atomic counter in the header.
package shm

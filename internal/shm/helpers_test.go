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

package shm

import (
	"fmt"
	"testing"
	"time"
)

// createTestSegment creates a segment of n elements under a per-test
// directory and registers cleanup with t.Cleanup so the mapping is released
// even if the test fails.
func createTestSegment(t *testing.T, baseName string, n int) *Segment {
	t.Helper()

	// Create unique name using test name and timestamp
	path := SegmentPath(t.TempDir(), fmt.Sprintf("%s-%d", baseName, time.Now().UnixNano()))

	seg, err := Create(path, n)
	if err != nil {
		t.Fatalf("Failed to create test segment %s: %v", path, err)
	}

	t.Cleanup(func() {
		seg.Close()
		Remove(path)
	})

	return seg
}

// openTestSegment maps an existing segment and closes it on cleanup.
func openTestSegment(t *testing.T, path string) *Segment {
	t.Helper()

	seg, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open test segment %s: %v", path, err)
	}
	t.Cleanup(func() { seg.Close() })

	return seg
}

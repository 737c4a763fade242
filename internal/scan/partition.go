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

import "fmt"

// Segment is the half-open index range [Start, End) owned by one worker for
// a whole run.
type Segment struct {
	Start int
	End   int
}

// Len returns the number of indices in the segment
func (s Segment) Len() int {
	return s.End - s.Start
}

// Empty reports whether the segment has no indices
func (s Segment) Empty() bool {
	return s.End <= s.Start
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}

// Partition splits [0, n) into workers contiguous segments. Every segment
// has n/workers indices except the last, which also takes the n%workers
// remainder. With more workers than indices all but the last segment are
// empty.
func Partition(n, workers int) []Segment {
	if workers < 1 {
		return nil
	}
	if n < 0 {
		n = 0
	}

	size := n / workers
	segments := make([]Segment, workers)
	for i := range segments {
		start := i * size
		end := start + size
		if i == workers-1 {
			end = n
		}
		segments[i] = Segment{Start: start, End: end}
	}
	return segments
}

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

// Source is a read-only view of the current buffer.
type Source struct {
	data []int64
}

// NewSource wraps the current buffer.
func NewSource(current []int64) Source {
	return Source{data: current}
}

// Len returns the buffer length
func (s Source) Len() int {
	return len(s.data)
}

// At returns the value at index i
func (s Source) At(i int) int64 {
	return s.data[i]
}

// Lane is the part of the next buffer owned by one worker. Indices are
// absolute; writing outside the segment panics.
type Lane struct {
	seg  Segment
	data []int64
}

// NewLane restricts next to seg. It panics if seg does not fit in next.
func NewLane(next []int64, seg Segment) Lane {
	return Lane{seg: seg, data: next[seg.Start:seg.End:seg.End]}
}

// Segment returns the range the lane covers
func (l Lane) Segment() Segment {
	return l.seg
}

// Set writes v at absolute index i
func (l Lane) Set(i int, v int64) {
	l.data[i-l.seg.Start] = v
}

// Step applies one Hillis-Steele round at the given step to the lane's
// segment: each index receives its own current value plus the current value
// step positions behind it, or its current value unchanged when no such
// position exists.
func Step(src Source, dst Lane, step int) {
	for i := dst.seg.Start; i < dst.seg.End; i++ {
		v := src.At(i)
		if j := i - step; j >= 0 {
			v += src.At(j)
		}
		dst.Set(i, v)
	}
}

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

// Buffers is the buffer pair of one run. Current holds the inputs of the
// active round, Next receives its outputs, and Swap exchanges the roles once
// the round's barrier has passed. Close releases the pair.
type Buffers interface {
	Len() int
	Current() []int64
	Next() []int64
	Swap()
	Close() error
}

// HeapBuffers is a buffer pair in ordinary process memory.
type HeapBuffers struct {
	bufs [2][]int64
	cur  int
}

// NewHeapBuffers allocates two buffers of n elements.
func NewHeapBuffers(n int) *HeapBuffers {
	return &HeapBuffers{bufs: [2][]int64{make([]int64, n), make([]int64, n)}}
}

func (b *HeapBuffers) Len() int         { return len(b.bufs[0]) }
func (b *HeapBuffers) Current() []int64 { return b.bufs[b.cur] }
func (b *HeapBuffers) Next() []int64    { return b.bufs[1-b.cur] }
func (b *HeapBuffers) Swap()            { b.cur = 1 - b.cur }

// Close drops the buffers.
func (b *HeapBuffers) Close() error {
	b.bufs = [2][]int64{}
	b.cur = 0
	return nil
}

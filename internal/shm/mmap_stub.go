//go:build !unix

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

func init() {
	unmapMemory = func([]byte) error { return nil }
}

// Create is not supported on this platform
func Create(path string, n int) (*Segment, error) {
	return nil, ErrUnsupported
}

// Open is not supported on this platform
func Open(path string) (*Segment, error) {
	return nil, ErrUnsupported
}

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
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func init() {
	// Set platform-specific function implementations
	unmapMemory = munmapImpl
}

// Create creates a new segment at path holding two buffers of n elements.
// The caller owns the segment; Close removes the file.
func Create(path string, n int) (*Segment, error) {
	if n < 1 {
		return nil, fmt.Errorf("buffer length must be positive, got %d", n)
	}

	// Calculate the layout
	totalSize, buf0Offset, buf1Offset, err := CalculateLayout(uint64(n))
	if err != nil {
		return nil, fmt.Errorf("layout calculation failed: %w", err)
	}

	// Create the file with exclusive access
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment file %s: %w", path, err)
	}

	// Ensure cleanup on error
	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	// Set the file size
	if err := unix.Ftruncate(int(file.Fd()), int64(totalSize)); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to resize segment file: %w", err)
	}

	// Memory map the file
	mem, err := mmapFile(file, int(totalSize))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to mmap segment: %w", err)
	}

	// Initialize the segment header before building views
	h := (*Header)(unsafe.Pointer(&mem[0]))
	var magic [8]byte
	copy(magic[:], SegmentMagic)
	h.SetMagic(magic)
	h.SetVersion(SegmentVersion)
	h.SetLength(uint64(n))
	h.SetBufferOffset(0, buf0Offset)
	h.SetBufferOffset(1, buf1Offset)
	h.SetStep(0)
	h.SetCurrentIndex(0)
	h.ResetCompleted()
	h.SetOwnerPID(uint32(os.Getpid()))

	segment := &Segment{
		File:  file,
		Mem:   mem,
		Path:  path,
		owner: true,
	}
	segment.bind()

	return segment, nil
}

// Open maps an existing segment. The returned mapping does not own the file.
func Open(path string) (*Segment, error) {
	// Open the existing file
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment file %s: %w", path, err)
	}

	// Get file info to determine size
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat segment file: %w", err)
	}

	size := info.Size()
	if size < HeaderSize {
		file.Close()
		return nil, fmt.Errorf("%w: file too small: %d bytes", ErrInvalidSegment, size)
	}

	// Memory map the file
	mem, err := mmapFile(file, int(size))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap segment: %w", err)
	}

	// Validate the header before trusting its offsets
	if err := ValidateHeader((*Header)(unsafe.Pointer(&mem[0])), uint64(size)); err != nil {
		munmapImpl(mem)
		file.Close()
		return nil, err
	}

	segment := &Segment{
		File: file,
		Mem:  mem,
		Path: path,
	}
	segment.bind()

	return segment, nil
}

// mmapFile memory maps a file
func mmapFile(file *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	return data, nil
}

// munmapImpl unmaps a memory-mapped region
func munmapImpl(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap failed: %w", err)
	}

	return nil
}

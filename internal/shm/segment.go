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
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"go.uber.org/multierr"
)

// Memory layout constants
const (
	// Magic bytes for segment identification
	SegmentMagic = "SHMSCAN\x00"

	// Current layout version
	SegmentVersion = uint32(1)

	// Segment header size (aligned to 64 bytes)
	HeaderSize = 64

	// Size of one buffer element in bytes
	ElementSize = 8

	// Prefix used for segment file names
	filePrefix = "shmscan_"
)

var (
	// ErrInvalidSegment is returned when a mapped file does not hold a valid segment.
	ErrInvalidSegment = errors.New("invalid shared memory segment")

	// ErrUnsupported is returned on platforms without shared file mappings.
	ErrUnsupported = errors.New("shared memory segments not supported on this platform")
)

// Platform-specific functions (implemented in platform-specific files)
var (
	// unmapMemory unmaps a memory-mapped region
	unmapMemory func([]byte) error
)

// Header represents the shared memory segment header.
type Header struct {
	magic     [8]byte   // 0x00: "SHMSCAN\0"
	version   uint32    // 0x08: layout version
	flags     uint32    // 0x0C: reserved flags
	length    uint64    // 0x10: elements per buffer
	bufOff    [2]uint64 // 0x18: offsets of buffer 0 and buffer 1
	step      uint64    // 0x28: step of the active round
	current   uint32    // 0x30: index of the buffer holding the current role
	completed uint32    // 0x34: workers that finished the active round
	ownerPID  uint32    // 0x38: process that created the segment
	pad       uint32    // 0x3C: padding to 64B
}

// Magic returns the magic bytes
func (h *Header) Magic() [8]byte {
	return h.magic
}

// SetMagic sets the magic bytes
func (h *Header) SetMagic(magic [8]byte) {
	h.magic = magic
}

// Version returns the layout version
func (h *Header) Version() uint32 {
	return atomic.LoadUint32(&h.version)
}

// SetVersion sets the layout version
func (h *Header) SetVersion(version uint32) {
	atomic.StoreUint32(&h.version, version)
}

// Length returns the number of elements in each buffer
func (h *Header) Length() uint64 {
	return atomic.LoadUint64(&h.length)
}

// SetLength sets the number of elements in each buffer
func (h *Header) SetLength(n uint64) {
	atomic.StoreUint64(&h.length, n)
}

// BufferOffset returns the byte offset of buffer i
func (h *Header) BufferOffset(i int) uint64 {
	return atomic.LoadUint64(&h.bufOff[i&1])
}

// SetBufferOffset sets the byte offset of buffer i
func (h *Header) SetBufferOffset(i int, off uint64) {
	atomic.StoreUint64(&h.bufOff[i&1], off)
}

// Step returns the step of the active round
func (h *Header) Step() uint64 {
	return atomic.LoadUint64(&h.step)
}

// SetStep sets the step of the active round
func (h *Header) SetStep(step uint64) {
	atomic.StoreUint64(&h.step, step)
}

// CurrentIndex returns which buffer (0 or 1) holds the current role
func (h *Header) CurrentIndex() int {
	return int(atomic.LoadUint32(&h.current) & 1)
}

// SetCurrentIndex assigns the current role to buffer i
func (h *Header) SetCurrentIndex(i int) {
	atomic.StoreUint32(&h.current, uint32(i&1))
}

// Completed returns how many workers reported completion of the active round
func (h *Header) Completed() uint32 {
	return atomic.LoadUint32(&h.completed)
}

// MarkCompleted atomically records one finished worker
func (h *Header) MarkCompleted() uint32 {
	return atomic.AddUint32(&h.completed, 1)
}

// ResetCompleted clears the completion counter before a round starts
func (h *Header) ResetCompleted() {
	atomic.StoreUint32(&h.completed, 0)
}

// OwnerPID returns the PID of the creating process
func (h *Header) OwnerPID() uint32 {
	return atomic.LoadUint32(&h.ownerPID)
}

// SetOwnerPID sets the PID of the creating process
func (h *Header) SetOwnerPID(pid uint32) {
	atomic.StoreUint32(&h.ownerPID, pid)
}

// CalculateLayout calculates the memory layout for a segment holding two
// buffers of n elements each.
func CalculateLayout(n uint64) (totalSize, buf0Offset, buf1Offset uint64, err error) {
	if n == 0 {
		return 0, 0, 0, fmt.Errorf("buffer length must be positive")
	}
	// Both buffers plus header and alignment slack must fit in an int.
	if n > (math.MaxInt-4*HeaderSize)/(2*ElementSize) {
		return 0, 0, 0, fmt.Errorf("buffer length %d too large", n)
	}

	buf0Offset = alignTo64(HeaderSize)
	buf1Offset = alignTo64(buf0Offset + n*ElementSize)
	totalSize = alignTo64(buf1Offset + n*ElementSize)

	return totalSize, buf0Offset, buf1Offset, nil
}

// alignTo64 aligns a size to 64-byte boundary
func alignTo64(size uint64) uint64 {
	return (size + 63) &^ 63
}

// ValidateHeader validates a segment header against the size of its mapping.
func ValidateHeader(h *Header, mappedSize uint64) error {
	if magic := h.Magic(); string(magic[:]) != SegmentMagic {
		return fmt.Errorf("%w: bad magic bytes %q", ErrInvalidSegment, magic[:])
	}
	if h.Version() != SegmentVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidSegment, h.Version(), SegmentVersion)
	}

	expectedTotal, expected0, expected1, err := CalculateLayout(h.Length())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}
	if mappedSize < expectedTotal {
		return fmt.Errorf("%w: mapping is %d bytes, layout needs %d", ErrInvalidSegment, mappedSize, expectedTotal)
	}
	if h.BufferOffset(0) != expected0 {
		return fmt.Errorf("%w: buffer 0 offset mismatch: got %d, expected %d", ErrInvalidSegment, h.BufferOffset(0), expected0)
	}
	if h.BufferOffset(1) != expected1 {
		return fmt.Errorf("%w: buffer 1 offset mismatch: got %d, expected %d", ErrInvalidSegment, h.BufferOffset(1), expected1)
	}

	return nil
}

// Segment represents a mapped shared memory buffer pair
type Segment struct {
	File *os.File // File backing the mapping
	Mem  []byte   // Memory-mapped region
	H    *Header  // Typed view of the segment header
	Path string   // File path

	bufs  [2][]int64
	owner bool
}

// bind sets up the header and buffer views over s.Mem.
func (s *Segment) bind() {
	base := unsafe.Pointer(&s.Mem[0])
	s.H = (*Header)(base)
	n := int(s.H.Length())
	for i := range s.bufs {
		off := uintptr(s.H.BufferOffset(i))
		s.bufs[i] = unsafe.Slice((*int64)(unsafe.Add(base, off)), n)
	}
}

// Len returns the number of elements in each buffer
func (s *Segment) Len() int {
	return len(s.bufs[0])
}

// Current returns the buffer holding the inputs of the active round.
func (s *Segment) Current() []int64 {
	return s.bufs[s.H.CurrentIndex()]
}

// Next returns the buffer receiving the outputs of the active round.
func (s *Segment) Next() []int64 {
	return s.bufs[1-s.H.CurrentIndex()]
}

// Swap hands the current role to the buffer that was next.
func (s *Segment) Swap() {
	s.H.SetCurrentIndex(1 - s.H.CurrentIndex())
}

// Owner reports whether this mapping created the segment.
func (s *Segment) Owner() bool {
	return s.owner
}

// Close unmaps the memory and closes the file. The owning mapping also
// removes the backing file.
func (s *Segment) Close() error {
	var err error

	if s.Mem != nil {
		err = multierr.Append(err, unmapMemory(s.Mem))
		s.Mem = nil
		s.H = nil
		s.bufs = [2][]int64{}
	}

	if s.File != nil {
		err = multierr.Append(err, s.File.Close())
		s.File = nil
	}

	if s.owner && s.Path != "" {
		if rerr := os.Remove(s.Path); rerr != nil && !os.IsNotExist(rerr) {
			err = multierr.Append(err, rerr)
		}
		s.owner = false
	}

	return err
}

// Utility functions

// SegmentPath returns the file path for a segment called name. An empty dir
// selects /dev/shm when available and the temporary directory otherwise.
func SegmentPath(dir, name string) string {
	if dir == "" {
		dir = os.TempDir()
		if isDevShmAvailable() {
			dir = "/dev/shm"
		}
	}
	return filepath.Join(dir, filePrefix+name)
}

// isDevShmAvailable checks if /dev/shm is available
func isDevShmAvailable() bool {
	info, err := os.Stat("/dev/shm")
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Remove removes a segment file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists checks if a segment file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

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

// Package seqio reads and writes integer sequences as whitespace separated
// text.
package seqio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"
)

// ErrShortInput is returned when the source holds fewer integers than asked for.
var ErrShortInput = errors.New("input holds fewer integers than requested")

// Read reads exactly n whitespace separated integers from r. Anything after
// the n-th integer is ignored.
func Read(r io.Reader, n int) ([]int64, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative count %d", n)
	}

	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	out := make([]int64, 0, n)
	for len(out) < n && sc.Scan() {
		v, err := strconv.ParseInt(sc.Text(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer %d: %w", len(out)+1, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(out) < n {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShortInput, len(out), n)
	}
	return out, nil
}

// ReadFile reads exactly n integers from the named file.
func ReadFile(path string, n int) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seq, err := Read(f, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// Write writes seq to w, one integer per line.
func Write(w io.Writer, seq []int64) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 24)
	for _, v := range seq {
		buf = strconv.AppendInt(buf[:0], v, 10)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes seq to the named file through a temporary file in the
// same directory, so the destination is either complete or untouched.
func WriteFile(path string, seq []int64) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err := Write(tmp, seq); err != nil {
		return multierr.Append(fmt.Errorf("write %s: %w", path, err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

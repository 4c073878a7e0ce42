// The MIT License
//
// Copyright (c) 2018-2019 by the author(s)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//
// Author(s):
//   - Dirk Hutter <hutter@compeng.uni-frankfurt.de>
//
// Description:
//
// Error kinds returned by the driver. Callers match kinds with errors.Is;
// wrapped variants carry context about the failing operation.

package flib

import (
	"github.com/pkg/errors"
)

var (
	// ErrAlreadyExists is returned when a buffer create collides with a
	// persistent allocation under the same id.
	ErrAlreadyExists = errors.New("buffer already exists")

	// ErrNotFound is returned when a buffer open finds no allocation under
	// the requested id.
	ErrNotFound = errors.New("buffer not found")

	// ErrAllocFailed is returned when the allocator refuses an allocation
	// for reasons other than an id collision.
	ErrAllocFailed = errors.New("buffer allocation failed")

	// ErrHardwareNotReady is returned when an operation is preconditioned
	// on a hardware ready bit that is not set.
	ErrHardwareNotReady = errors.New("hardware not ready")

	// ErrTruncated is returned when a received control message carries a
	// word count outside the valid range and was clamped.
	ErrTruncated = errors.New("control message truncated")

	// ErrNoMessage is returned when no control message is pending.
	ErrNoMessage = errors.New("no control message pending")
)

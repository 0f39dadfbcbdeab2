// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package diode

import "errors"

// Sentinel error kinds. Component boundaries wrap these with
// github.com/pkg/errors to attach a stack trace and a one-line
// description of what was being attempted; callers match the
// underlying kind with errors.Is.
var (
	// ErrConfigInvalid means a config field (K, R, window, chunk size,
	// ...) was out of range. Fail fast, before any socket opens.
	ErrConfigInvalid = errors.New("diode: invalid configuration")

	// ErrMalformedPacket covers bad magic, truncated header, or a
	// payload_len inconsistent with the datagram actually received.
	// Never fatal: the packet is dropped and a counter incremented.
	ErrMalformedPacket = errors.New("diode: malformed packet")

	// ErrBlockUnrecoverable means fewer than K chunks of a block were
	// observed before it was evicted from the receive window.
	ErrBlockUnrecoverable = errors.New("diode: block unrecoverable")

	// ErrIncompleteStream means the receiver's idle timeout fired
	// without ever observing LAST_BLOCK, or a block preceding it was
	// unrecoverable. Surfaced as process exit code 2.
	ErrIncompleteStream = errors.New("diode: incomplete stream")

	// ErrIOFatal wraps a non-transient socket or stream I/O failure.
	// Surfaced as process exit code 1.
	ErrIOFatal = errors.New("diode: fatal I/O error")
)

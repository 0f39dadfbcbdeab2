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

import (
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// CompressWriter wraps w so everything written through it is
// snappy-compressed, for the sender's optional --compress mode.
// Adapted from the teacher's std/comp.go CompStream, minus the net.Conn
// plumbing: pydiode compresses a byte stream, not a multiplexed
// connection, and applies the transform once, outside the chunker/FEC
// boundary (see SPEC_FULL.md's Domain Stack).
type CompressWriter struct {
	w *snappy.Writer
}

// NewCompressWriter wraps w.
func NewCompressWriter(w io.Writer) *CompressWriter {
	return &CompressWriter{w: snappy.NewBufferedWriter(w)}
}

func (c *CompressWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "compress: write")
	}
	return n, nil
}

// Close flushes any buffered compressed bytes. Must be called once the
// caller is done writing, before the downstream chunker observes EOF.
func (c *CompressWriter) Close() error {
	return errors.Wrap(c.w.Close(), "compress: close")
}

// NewDecompressReader wraps r so reads through it yield the original
// (decompressed) bytes, for the receiver's --compress mode.
func NewDecompressReader(r io.Reader) io.Reader {
	return snappy.NewReader(r)
}

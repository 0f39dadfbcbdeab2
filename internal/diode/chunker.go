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

	"github.com/pkg/errors"
)

// Chunker reads an input octet stream and groups it into fixed-size
// data chunks of ChunkBytes, K per block, per spec.md §4.1.
type Chunker struct {
	r          io.Reader
	chunkBytes int
	k          int
	nextBlock  uint32
	done       bool

	// pending holds one byte read while probing for a clean EOF right
	// at a K-chunk boundary; consumed by the next read before r is.
	pending    byte
	hasPending bool
}

// NewChunker builds a chunker reading from r.
func NewChunker(r io.Reader, chunkBytes, k int) *Chunker {
	return &Chunker{r: r, chunkBytes: chunkBytes, k: k}
}

func (c *Chunker) read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	if c.hasPending {
		p[0] = c.pending
		c.hasPending = false
		n = 1
		if len(p) == 1 {
			return n, nil
		}
	}
	m, err := c.r.Read(p[n:])
	return n + m, err
}

func (c *Chunker) readFull(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := c.read(p[total:])
		total += n
		if err != nil {
			if err == io.EOF && total > 0 {
				return total, io.ErrUnexpectedEOF
			}
			return total, err
		}
	}
	return total, nil
}

// atEOF reports whether the underlying stream has nothing left, without
// consuming input that turns out not to be EOF.
func (c *Chunker) atEOF() bool {
	var probe [1]byte
	n, err := c.read(probe[:])
	if n == 1 {
		c.pending = probe[0]
		c.hasPending = true
		return false
	}
	return err == io.EOF
}

// Next returns the next block in order, or (nil, io.EOF) once the
// terminal block has already been returned. The terminal block is
// marked LastBlock; it is Empty when it holds zero real data chunks, as
// for an empty input. An input whose length is an exact multiple of
// K*ChunkBytes has its last full block marked LastBlock instead.
func (c *Chunker) Next() (*Block, error) {
	if c.done {
		return nil, io.EOF
	}

	b := &Block{
		ID:   c.nextBlock,
		Data: make([]byte, c.k*c.chunkBytes),
		Len:  make([]uint16, c.k),
	}

	// real counts how many leading chunks hold validated content; it is
	// set to i+1 directly (not incremented) so the EOF-terminating
	// slot itself is correctly left out when it contributed no bytes.
	real := 0
	for i := 0; i < c.k; i++ {
		n, err := c.readFull(b.chunk(i, c.chunkBytes))
		switch {
		case err == nil:
			b.Len[i] = uint16(n)
			real = i + 1
		case err == io.EOF:
			// Clean end-of-stream exactly at a chunk boundary: this
			// chunk contributes nothing.
			b.LastBlock = true
			c.done = true
		case err == io.ErrUnexpectedEOF:
			// Partial final chunk: n valid bytes, rest already zero.
			b.Len[i] = uint16(n)
			real = i + 1
			b.LastBlock = true
			c.done = true
		default:
			return nil, errors.Wrap(err, "chunker: read input")
		}
		if b.LastBlock {
			break
		}
	}

	if !b.LastBlock {
		// Read exactly K full chunks with no EOF yet. Probe so a
		// stream whose length is an exact multiple of K*ChunkBytes
		// marks THIS block terminal instead of emitting a spurious
		// all-pad block afterwards.
		if c.atEOF() {
			b.LastBlock = true
			c.done = true
		}
	}

	for i := real; i < c.k; i++ {
		b.Len[i] = uint16(c.chunkBytes)
	}
	b.Real = real
	c.nextBlock++

	if b.LastBlock && real == 0 {
		b.Empty = true
	}
	return b, nil
}

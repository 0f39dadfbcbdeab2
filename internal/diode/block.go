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

// Block is a group of K data chunks (zero-padded in the terminal block)
// ready for FEC encoding, per spec.md §3.
type Block struct {
	ID   uint32
	Data []byte   // K*ChunkBytes bytes, chunk i at Data[i*ChunkBytes:(i+1)*ChunkBytes]
	Len  []uint16 // per-chunk valid byte count; == ChunkBytes except possibly the last real chunk

	LastBlock bool

	// Real is the number of leading chunks (1..K) that hold actual stream
	// content; the rest are zero-padding. Meaningful only on LastBlock
	// (non-terminal blocks are always full, Real == K). It is carried on
	// the wire (Header.RealChunks) so the receiver can locate the true
	// end of the stream even when the final real chunk is exactly
	// ChunkBytes long and so carries no payload_len signal of its own.
	Real int

	// Empty is set only for a terminal block that holds zero real data
	// chunks, as for an empty input stream. (An input whose length is an
	// exact multiple of K*ChunkBytes does not produce one: its last full
	// block is marked LastBlock instead.) Such a block is carried on the
	// wire as a single header-only sentinel packet rather than the
	// full K+R set, per spec.md §9's resolution of the empty-input
	// Open Question.
	Empty bool
}

// chunk returns the i'th data chunk's backing bytes (length ChunkBytes).
func (b *Block) chunk(i, chunkBytes int) []byte {
	return b.Data[i*chunkBytes : (i+1)*chunkBytes]
}

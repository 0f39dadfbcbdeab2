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

// Package diode implements the unidirectional reliable-datagram protocol:
// chunking, Reed-Solomon FEC, paced UDP emission on the sender side, and
// deduplication, block reassembly, FEC decode and in-order stream
// emission on the receiver side.
package diode

import "encoding/binary"

const (
	// magicV1 identifies this wire format. Packets with any other
	// magic are dropped silently as noise or a foreign protocol.
	magicV1 = uint16(0xD10D)

	// HeaderSize is the fixed 13-byte packet header length.
	HeaderSize = 13

	// FlagLastBlock marks every packet of the stream's terminal block.
	FlagLastBlock byte = 1 << 0
	// FlagParity marks a parity (as opposed to data) chunk.
	FlagParity byte = 1 << 1
)

// Header is the 13-byte wire header that prefixes every packet's payload.
// All multi-byte integers are big-endian, per the wire format.
type Header struct {
	Flags      byte
	K          uint8
	R          uint8
	ChunkIndex uint8
	BlockID    uint32
	// RealChunks is only meaningful on a LAST_BLOCK packet: the number of
	// leading data chunks (1..K) that hold real stream content, as opposed
	// to zero-padding. It is set identically on every packet (data and
	// parity) of the terminal block, so any one directly-received packet
	// of that block discloses it - unlike payload_len, it does not depend
	// on the final real chunk happening to be short of ChunkBytes.
	RealChunks uint8
	PayloadLen uint16
}

// LastBlock reports whether this packet belongs to the stream's terminal block.
func (h Header) LastBlock() bool { return h.Flags&FlagLastBlock != 0 }

// Parity reports whether this packet carries a parity chunk rather than data.
func (h Header) Parity() bool { return h.Flags&FlagParity != 0 }

// EncodePacket serializes header and payload into buf (reusing its
// backing array, growing it if needed) and returns the full datagram.
func EncodePacket(buf []byte, h Header, payload []byte) []byte {
	total := HeaderSize + len(payload)
	if cap(buf) < total {
		buf = make([]byte, total)
	}
	buf = buf[:total]

	binary.BigEndian.PutUint16(buf[0:2], magicV1)
	buf[2] = h.Flags
	buf[3] = h.K
	buf[4] = h.R
	buf[5] = h.ChunkIndex
	binary.BigEndian.PutUint32(buf[6:10], h.BlockID)
	buf[10] = h.RealChunks
	binary.BigEndian.PutUint16(buf[11:13], h.PayloadLen)
	copy(buf[HeaderSize:], payload)
	return buf
}

// DecodePacket parses a raw datagram into its header and payload. The
// returned payload shares buf's backing array. Any inconsistency (bad
// magic, short datagram, payload_len exceeding what's actually present)
// yields ErrMalformedPacket; callers should drop the packet silently.
func DecodePacket(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, ErrMalformedPacket
	}
	if binary.BigEndian.Uint16(buf[0:2]) != magicV1 {
		return Header{}, nil, ErrMalformedPacket
	}

	h := Header{
		Flags:      buf[2],
		K:          buf[3],
		R:          buf[4],
		ChunkIndex: buf[5],
		BlockID:    binary.BigEndian.Uint32(buf[6:10]),
		RealChunks: buf[10],
		PayloadLen: binary.BigEndian.Uint16(buf[11:13]),
	}

	if int(h.PayloadLen) > len(buf)-HeaderSize {
		return Header{}, nil, ErrMalformedPacket
	}
	return h, buf[HeaderSize : HeaderSize+int(h.PayloadLen)], nil
}

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
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

const (
	sendRetryBaseDelay = 10 * time.Millisecond
	maxSendRetries     = 5
)

// Sender implements spec.md §4.1-4.3's pipeline: stream chunker, FEC
// encoder and paced emitter, feeding a single UDP socket. It is
// stateless with respect to the receiver (spec.md §3, "Session state
// (sender)"): blocks stream through once and are never revisited.
type Sender struct {
	cfg   SendConfig
	conn  net.PacketConn
	dst   net.Addr
	fec   *fecCodec
	pacer *pacer
	stats *Stats

	scratch []byte // reused packet-serialization buffer
}

// NewSender validates cfg and builds a Sender writing to dst over conn.
func NewSender(cfg SendConfig, conn net.PacketConn, dst net.Addr) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fec, err := newFECCodec(cfg.K, cfg.R)
	if err != nil {
		return nil, errors.Wrap(err, "sender: build fec codec")
	}
	return &Sender{
		cfg:   cfg,
		conn:  conn,
		dst:   dst,
		fec:   fec,
		pacer: newPacer(cfg.RateBPS),
		stats: &Stats{},
	}, nil
}

// Stats returns the sender's diagnostic counters.
func (s *Sender) Stats() *Stats { return s.stats }

// Run chunks, FEC-encodes and paces r onto the socket until r is
// exhausted, emitting the terminal block's packets an extra
// RedundantFinal-1 times (spec.md §4.3, §4.7). Input read errors are
// fatal, per spec.md §7's InputExhausted/IOFatal split: a clean EOF
// ends Run with a nil error; anything else is wrapped and returned.
func (s *Sender) Run(ctx context.Context, r io.Reader) error {
	chunker := NewChunker(r, s.cfg.ChunkBytes, s.cfg.K)

	for {
		block, err := chunker.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "sender: chunk input")
		}

		if err := s.sendBlock(ctx, block); err != nil {
			return err
		}

		if block.LastBlock {
			for i := 1; i < s.cfg.RedundantFinal; i++ {
				if err := s.sendBlock(ctx, block); err != nil {
					return err
				}
			}
			return nil
		}
	}
}

// sendBlock emits one block's packets: data chunks 0..K-1 in order,
// then parity chunks K..N-1 (spec.md §4.3). A block with zero real
// data chunks (Block.Empty) is carried as a single header-only
// sentinel packet instead, per the empty-input Open Question
// resolution (see DESIGN.md).
func (s *Sender) sendBlock(ctx context.Context, b *Block) error {
	if b.Empty {
		h := Header{
			Flags:      FlagLastBlock,
			K:          uint8(s.cfg.K),
			R:          uint8(s.cfg.R),
			ChunkIndex: 0,
			BlockID:    b.ID,
			PayloadLen: 0,
		}
		return s.sendPacket(ctx, h, nil)
	}

	var flags byte
	var realChunks uint8
	if b.LastBlock {
		flags |= FlagLastBlock
		realChunks = uint8(b.Real)
	}

	for i := 0; i < s.cfg.K; i++ {
		h := Header{
			Flags:      flags,
			K:          uint8(s.cfg.K),
			R:          uint8(s.cfg.R),
			ChunkIndex: uint8(i),
			BlockID:    b.ID,
			RealChunks: realChunks,
			PayloadLen: b.Len[i],
		}
		payload := b.chunk(i, s.cfg.ChunkBytes)[:b.Len[i]]
		if err := s.sendPacket(ctx, h, payload); err != nil {
			return err
		}
	}

	if s.cfg.R == 0 {
		return nil
	}

	dataShards := make([][]byte, s.cfg.K)
	for i := range dataShards {
		dataShards[i] = b.chunk(i, s.cfg.ChunkBytes)
	}
	parity, err := s.fec.encodeParity(dataShards)
	if err != nil {
		return errors.Wrap(err, "sender: fec encode")
	}
	for j, p := range parity {
		h := Header{
			Flags:      flags | FlagParity,
			K:          uint8(s.cfg.K),
			R:          uint8(s.cfg.R),
			ChunkIndex: uint8(s.cfg.K + j),
			BlockID:    b.ID,
			RealChunks: realChunks,
			PayloadLen: uint16(len(p)),
		}
		if err := s.sendPacket(ctx, h, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) sendPacket(ctx context.Context, h Header, payload []byte) error {
	if err := s.pacer.wait(ctx, HeaderSize+len(payload)); err != nil {
		return err
	}
	s.scratch = EncodePacket(s.scratch, h, payload)
	return s.writeWithRetry(ctx, s.scratch)
}

// writeWithRetry retries a transient socket-send failure with bounded
// back-off; persistent failure is fatal (spec.md §4.3, §7).
func (s *Sender) writeWithRetry(ctx context.Context, pkt []byte) error {
	backoff := sendRetryBaseDelay
	for attempt := 0; ; attempt++ {
		_, err := s.conn.WriteTo(pkt, s.dst)
		if err == nil {
			return nil
		}
		if attempt >= maxSendRetries {
			return errors.Wrap(ErrIOFatal, errors.Wrap(err, "socket write").Error())
		}

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
		backoff *= 2
	}
}

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

// partialBlock accumulates whatever chunks of one block_id have arrived
// so far, tracking which data shards were directly received versus
// left for FEC to fill in (spec.md §4.4-4.6).
type partialBlock struct {
	shards    [][]byte // len K+R; nil until a chunk_index's packet arrives, each ChunkBytes long once set
	lens      []uint16 // payload_len of each data chunk, valid only where gotDirect[i]
	gotDirect []bool   // len K; true once shard i was received directly (not FEC-filled)
	present   int      // count of non-nil entries in shards

	lastBlock  bool
	empty      bool // single-sentinel-packet block, see block.go's Empty
	realKnown  bool // true once a directly-received LAST_BLOCK packet disclosed realChunks
	realChunks int  // number of leading data chunks holding real content, valid iff realKnown
}

// Receiver implements the sliding-window block assembler, FEC decoder
// and in-order stream emitter described in spec.md §4.4-4.6.
type Receiver struct {
	cfg   ReceiveConfig
	conn  net.PacketConn
	fec   *fecCodec
	stats *Stats

	window   map[uint32]*partialBlock
	nextEmit uint32
	lostAny  bool
}

// NewReceiver validates cfg and builds a Receiver reading from conn.
func NewReceiver(cfg ReceiveConfig, conn net.PacketConn) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fec, err := newFECCodec(cfg.K, cfg.R)
	if err != nil {
		return nil, errors.Wrap(err, "receiver: build fec codec")
	}
	return &Receiver{
		cfg:    cfg,
		conn:   conn,
		fec:    fec,
		stats:  &Stats{},
		window: make(map[uint32]*partialBlock),
	}, nil
}

// Stats returns the receiver's diagnostic counters.
func (r *Receiver) Stats() *Stats { return r.stats }

// Run reads packets until the terminal block has been resolved and its
// bytes written to w, or IdleTimeout elapses with no new packets
// (spec.md §4.6, §7: ErrIncompleteStream). A malformed datagram is
// dropped and counted, never fatal; any other socket read error is
// returned at once, wrapped in ErrIOFatal. Read errors are not retried.
func (r *Receiver) Run(ctx context.Context, w io.Writer) error {
	buf := make([]byte, maxUDPPayload)
	idle := time.Duration(r.cfg.IdleTimeout) * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			return errors.Wrap(ErrIOFatal, err.Error())
		}
		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return ErrIncompleteStream
			}
			return errors.Wrap(ErrIOFatal, err.Error())
		}

		h, payload, derr := DecodePacket(buf[:n])
		if derr != nil {
			r.stats.incMalformed()
			continue
		}
		if err := r.ingest(h, payload); err != nil {
			return err
		}

		done, err := r.drain(w)
		if done {
			if err != nil {
				return err
			}
			if r.lostAny {
				return ErrIncompleteStream
			}
			return nil
		}
	}
}

// ingest records one decoded packet against its block's partial state,
// evicting stale blocks from the window first if the new packet is far
// enough ahead to demand room (spec.md §4.5, WINDOW_BLOCKS).
func (r *Receiver) ingest(h Header, payload []byte) error {
	for h.BlockID >= r.nextEmit+uint32(r.cfg.Window) {
		r.evictOldest()
	}
	if h.BlockID < r.nextEmit {
		r.stats.incDuplicate()
		return nil
	}

	pb := r.window[h.BlockID]
	if pb == nil {
		pb = &partialBlock{
			shards:    make([][]byte, r.cfg.K+r.cfg.R),
			lens:      make([]uint16, r.cfg.K),
			gotDirect: make([]bool, r.cfg.K),
		}
		r.window[h.BlockID] = pb
	}

	// The empty-input sentinel: a single header-only packet, chunk_index
	// 0, payload_len 0, LAST_BLOCK set, no parity flag. It resolves the
	// block immediately rather than waiting for K chunks.
	if h.ChunkIndex == 0 && h.PayloadLen == 0 && h.LastBlock() && !h.Parity() {
		if pb.empty {
			r.stats.incDuplicate()
		} else {
			pb.empty = true
			pb.lastBlock = true
		}
		return nil
	}

	idx := int(h.ChunkIndex)
	if idx >= len(pb.shards) {
		r.stats.incMalformed()
		return nil
	}
	if pb.shards[idx] != nil {
		r.stats.incDuplicate()
		return nil
	}

	// Store every shard zero-padded to the full ChunkBytes width: parity
	// was computed over the sender's full (already zero-padded) chunks,
	// so reedsolomon requires equal-length shards here too. The true
	// byte count of a short terminal data chunk still lives in lens[idx].
	shard := make([]byte, r.cfg.ChunkBytes)
	copy(shard, payload)
	pb.shards[idx] = shard
	pb.present++
	if idx < r.cfg.K {
		pb.gotDirect[idx] = true
		pb.lens[idx] = h.PayloadLen
	}
	if h.LastBlock() {
		pb.lastBlock = true
		if !pb.realKnown {
			pb.realKnown = true
			pb.realChunks = int(h.RealChunks)
		}
	}
	return nil
}

// evictOldest drops the block at nextEmit (however incomplete) to make
// room in the window, counting it lost if it never reached K chunks.
func (r *Receiver) evictOldest() {
	if pb, ok := r.window[r.nextEmit]; !ok || (pb.present < r.cfg.K && !pb.empty) {
		r.stats.incLost()
		r.lostAny = true
	}
	delete(r.window, r.nextEmit)
	r.nextEmit++
}

// drain emits every block at the front of the window that has become
// resolvable, in block_id order, stopping at the first gap. It reports
// done once the terminal block has been emitted (or failed fatally).
func (r *Receiver) drain(w io.Writer) (done bool, err error) {
	for {
		pb, ok := r.window[r.nextEmit]
		if !ok {
			return false, nil
		}

		if pb.empty {
			r.stats.incEmitted()
			delete(r.window, r.nextEmit)
			r.nextEmit++
			if pb.lastBlock {
				return true, nil
			}
			continue
		}

		if pb.present < r.cfg.K {
			return false, nil
		}

		if err := r.resolveAndEmit(w, pb); err != nil {
			return true, err
		}
		delete(r.window, r.nextEmit)
		last := pb.lastBlock
		r.nextEmit++
		if last {
			return true, nil
		}
	}
}

// resolveAndEmit FEC-decodes pb if needed and writes its real data
// bytes to w. For the terminal block, realChunks (carried on the wire
// in every packet's RealChunks field, see packet.go) gives the number
// of leading chunks that hold real content; this holds even when the
// final real chunk is exactly ChunkBytes long and so no packet's
// payload_len is short. The exact trailing length of that final real
// chunk still depends on payload_len: if it was directly received,
// lens[] has it; if it was lost and only recovered via FEC, the
// implementation conservatively forwards it at full ChunkBytes length
// (see DESIGN.md).
func (r *Receiver) resolveAndEmit(w io.Writer, pb *partialBlock) error {
	direct := 0
	for _, got := range pb.gotDirect {
		if got {
			direct++
		}
	}
	if direct < r.cfg.K {
		if err := r.fec.reconstructData(pb.shards); err != nil {
			return errors.Wrap(ErrBlockUnrecoverable, err.Error())
		}
		r.stats.incRecovered()
	}
	r.stats.incEmitted()

	realChunks := r.cfg.K
	lastLen := r.cfg.ChunkBytes
	if pb.lastBlock && pb.realKnown && pb.realChunks > 0 {
		realChunks = pb.realChunks
		lastIdx := realChunks - 1
		if pb.gotDirect[lastIdx] {
			lastLen = int(pb.lens[lastIdx])
		}
	}

	for i := 0; i < realChunks; i++ {
		n := r.cfg.ChunkBytes
		if i == realChunks-1 {
			n = lastLen
		}
		if _, err := w.Write(pb.shards[i][:n]); err != nil {
			return errors.Wrap(ErrIOFatal, err.Error())
		}
	}
	return nil
}

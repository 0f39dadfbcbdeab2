package diode

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeAddr is a minimal net.Addr for the in-memory conns below.
type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// capturingConn is a net.PacketConn stand-in that records every
// datagram handed to WriteTo, in order, instead of touching a real
// socket. It lets tests reorder, drop or duplicate packets
// deterministically before replaying them into a receiver.
type capturingConn struct {
	mu      sync.Mutex
	packets [][]byte
}

func (c *capturingConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, append([]byte(nil), p...))
	return len(p), nil
}

func (c *capturingConn) ReadFrom([]byte) (int, net.Addr, error)  { return 0, nil, timeoutErr{} }
func (c *capturingConn) Close() error                            { return nil }
func (c *capturingConn) LocalAddr() net.Addr                     { return fakeAddr("sender") }
func (c *capturingConn) SetDeadline(time.Time) error             { return nil }
func (c *capturingConn) SetReadDeadline(time.Time) error         { return nil }
func (c *capturingConn) SetWriteDeadline(time.Time) error        { return nil }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// feederConn replays a fixed, pre-built sequence of datagrams to a
// receiver. Once exhausted it reports a timeout immediately, standing
// in for the sender having gone silent.
type feederConn struct {
	mu      sync.Mutex
	packets [][]byte
	idx     int
}

func (f *feederConn) ReadFrom(p []byte) (int, net.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.packets) {
		return 0, nil, timeoutErr{}
	}
	pkt := f.packets[f.idx]
	f.idx++
	return copy(p, pkt), fakeAddr("sender"), nil
}

func (f *feederConn) WriteTo(p []byte, _ net.Addr) (int, error) { return len(p), nil }
func (f *feederConn) Close() error                              { return nil }
func (f *feederConn) LocalAddr() net.Addr                       { return fakeAddr("receiver") }
func (f *feederConn) SetDeadline(time.Time) error               { return nil }
func (f *feederConn) SetReadDeadline(time.Time) error           { return nil }
func (f *feederConn) SetWriteDeadline(time.Time) error          { return nil }

func smallTestConfigs() (SendConfig, ReceiveConfig) {
	send := SendConfig{
		DstIP:          "test",
		Port:           1,
		RateBPS:        0,
		ChunkBytes:     16,
		K:              4,
		R:              2,
		RedundantFinal: 2,
	}
	recv := ReceiveConfig{
		Port:        1,
		IdleTimeout: 1,
		ChunkBytes:  16,
		K:           4,
		R:           2,
		Window:      16,
	}
	return send, recv
}

func sequentialBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}
	return b
}

// runRoundTrip sends input through a Sender into a capturingConn, lets
// transform rearrange/drop/duplicate the captured datagrams, then
// replays the result into a Receiver and returns what it emitted.
func runRoundTrip(t *testing.T, input []byte, transform func([][]byte) [][]byte) ([]byte, error) {
	t.Helper()
	sendCfg, recvCfg := smallTestConfigs()

	conn := &capturingConn{}
	sender, err := NewSender(sendCfg, conn, fakeAddr("dst"))
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	if err := sender.Run(context.Background(), bytes.NewReader(input)); err != nil {
		t.Fatalf("Sender.Run: %v", err)
	}

	packets := conn.packets
	if transform != nil {
		packets = transform(packets)
	}

	receiver, err := NewReceiver(recvCfg, &feederConn{packets: packets})
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}
	var out bytes.Buffer
	runErr := receiver.Run(context.Background(), &out)
	return out.Bytes(), runErr
}

func TestRoundTripNoLoss(t *testing.T) {
	input := sequentialBytes(69) // one full block (64B) plus a 5-byte partial terminal block
	out, err := runRoundTrip(t, input, nil)
	if err != nil {
		t.Fatalf("round trip returned error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(out), len(input))
	}
}

func TestRoundTripEmptyInput(t *testing.T) {
	out, err := runRoundTrip(t, nil, nil)
	if err != nil {
		t.Fatalf("round trip returned error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected zero bytes emitted for empty input, got %d", len(out))
	}
}

func TestRoundTripToleratesReorderingAndDuplication(t *testing.T) {
	input := sequentialBytes(69)
	out, err := runRoundTrip(t, input, func(pkts [][]byte) [][]byte {
		shuffled := make([][]byte, len(pkts))
		copy(shuffled, pkts)
		// Reverse the order, then duplicate every third packet, to
		// exercise reordering tolerance and idempotent dedup together.
		for i, j := 0, len(shuffled)-1; i < j; i, j = i+1, j-1 {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}
		var withDups [][]byte
		for i, p := range shuffled {
			withDups = append(withDups, p)
			if i%3 == 0 {
				withDups = append(withDups, p)
			}
		}
		return withDups
	})
	if err != nil {
		t.Fatalf("round trip returned error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("round trip mismatch under reordering/duplication")
	}
}

func TestRoundTripRecoversAtLossTolerance(t *testing.T) {
	input := sequentialBytes(69)

	out, err := runRoundTrip(t, input, func(pkts [][]byte) [][]byte {
		// Drop exactly R=2 data chunks from the first block (chunk_index
		// 0 and 1 of block_id 0); FEC must still reconstruct it.
		var kept [][]byte
		for _, p := range pkts {
			h, _, derr := DecodePacket(p)
			if derr != nil {
				t.Fatalf("DecodePacket: %v", derr)
			}
			if h.BlockID == 0 && !h.Parity() && (h.ChunkIndex == 0 || h.ChunkIndex == 1) {
				continue
			}
			kept = append(kept, p)
		}
		return kept
	})
	if err != nil {
		t.Fatalf("round trip within FEC tolerance returned error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("round trip mismatch after recoverable loss")
	}
}

// TestRoundTripExactChunkMultiple covers an input whose length is an
// exact multiple of ChunkBytes (16) but not of K*ChunkBytes (64): the
// terminal block's one real chunk is itself full length, so no packet
// in the block carries a short payload_len. The receiver must still
// truncate to the real chunk count via Header.RealChunks rather than
// emitting the zero-pad chunks as data.
func TestRoundTripExactChunkMultiple(t *testing.T) {
	input := sequentialBytes(16)
	out, err := runRoundTrip(t, input, nil)
	if err != nil {
		t.Fatalf("round trip returned error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(out), len(input))
	}
}

// TestRoundTripExactChunkMultipleSpanningBlocks exercises the same
// exact-multiple scenario after a full leading block, i.e. (K+1)*
// ChunkBytes total bytes: block 0 is full and non-terminal, block 1 is
// terminal with exactly one full real chunk and three pad chunks.
func TestRoundTripExactChunkMultipleSpanningBlocks(t *testing.T) {
	input := sequentialBytes(5 * 16) // K=4 full chunks, then 1 more full chunk
	out, err := runRoundTrip(t, input, nil)
	if err != nil {
		t.Fatalf("round trip returned error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(out), len(input))
	}
}

// TestRoundTripTerminalBlockRecoversWithShortChunk exercises FEC
// reconstruction of a terminal block that also contains a short real
// chunk: chunk 0 (5 real bytes) survives directly, but two full pad
// chunks within the FEC tolerance are dropped and must be reconstructed
// from parity despite the unequal original payload lengths.
func TestRoundTripTerminalBlockRecoversWithShortChunk(t *testing.T) {
	input := sequentialBytes(69) // block 0 full (64B), block 1 terminal with a 5-byte real chunk

	out, err := runRoundTrip(t, input, func(pkts [][]byte) [][]byte {
		var kept [][]byte
		for _, p := range pkts {
			h, _, derr := DecodePacket(p)
			if derr != nil {
				t.Fatalf("DecodePacket: %v", derr)
			}
			if h.BlockID == 1 && !h.Parity() && (h.ChunkIndex == 1 || h.ChunkIndex == 2) {
				continue
			}
			kept = append(kept, p)
		}
		return kept
	})
	if err != nil {
		t.Fatalf("round trip within FEC tolerance returned error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("round trip mismatch reconstructing a terminal block with a short chunk")
	}
}

func TestRoundTripBeyondToleranceIsIncomplete(t *testing.T) {
	input := sequentialBytes(69)

	_, err := runRoundTrip(t, input, func(pkts [][]byte) [][]byte {
		// Drop R+1=3 data chunks from block 0: unrecoverable.
		var kept [][]byte
		for _, p := range pkts {
			h, _, derr := DecodePacket(p)
			if derr != nil {
				t.Fatalf("DecodePacket: %v", derr)
			}
			if h.BlockID == 0 && !h.Parity() && h.ChunkIndex <= 2 {
				continue
			}
			kept = append(kept, p)
		}
		return kept
	})
	if err != ErrIncompleteStream {
		t.Fatalf("expected ErrIncompleteStream, got %v", err)
	}
}

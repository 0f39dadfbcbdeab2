package diode

import (
	"bytes"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	h := Header{
		Flags:      FlagLastBlock | FlagParity,
		K:          64,
		R:          32,
		ChunkIndex: 17,
		BlockID:    123456,
		RealChunks: 41,
		PayloadLen: 900,
	}
	payload := bytes.Repeat([]byte{0xAB}, 900)

	buf := EncodePacket(nil, h, payload)
	if len(buf) != HeaderSize+len(payload) {
		t.Fatalf("unexpected encoded length: got %d, want %d", len(buf), HeaderSize+len(payload))
	}

	gotH, gotPayload, err := DecodePacket(buf)
	if err != nil {
		t.Fatalf("DecodePacket returned error: %v", err)
	}
	if gotH != h {
		t.Fatalf("header mismatch: got %+v, want %+v", gotH, h)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch")
	}
	if !gotH.LastBlock() || !gotH.Parity() {
		t.Fatalf("flag accessors did not reflect encoded flags")
	}
}

func TestPacketEncodeReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 256)
	h := Header{ChunkIndex: 1, BlockID: 1, PayloadLen: 4}
	out := EncodePacket(buf, h, []byte{1, 2, 3, 4})
	if &out[0] != &buf[:cap(buf)][0] {
		t.Fatalf("EncodePacket should reuse buf's backing array when it has enough capacity")
	}
}

func TestDecodePacketRejectsShortHeader(t *testing.T) {
	if _, _, err := DecodePacket([]byte{1, 2, 3}); err != ErrMalformedPacket {
		t.Fatalf("expected ErrMalformedPacket for short header, got %v", err)
	}
}

func TestDecodePacketRejectsBadMagic(t *testing.T) {
	buf := EncodePacket(nil, Header{}, nil)
	buf[0] ^= 0xFF
	if _, _, err := DecodePacket(buf); err != ErrMalformedPacket {
		t.Fatalf("expected ErrMalformedPacket for bad magic, got %v", err)
	}
}

func TestDecodePacketRejectsPayloadLenOverrun(t *testing.T) {
	buf := EncodePacket(nil, Header{PayloadLen: 10}, make([]byte, 10))
	truncated := buf[:len(buf)-5]
	if _, _, err := DecodePacket(truncated); err != ErrMalformedPacket {
		t.Fatalf("expected ErrMalformedPacket for truncated payload, got %v", err)
	}
}

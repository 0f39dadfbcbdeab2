package diode

import (
	"bytes"
	"io"
	"testing"
)

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(bytes.NewReader(nil), 4, 3)
	b, err := c.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if !b.LastBlock || !b.Empty {
		t.Fatalf("expected an empty terminal block, got %+v", b)
	}

	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after the terminal block, got %v", err)
	}
}

func TestChunkerSingleChunkBlock(t *testing.T) {
	const chunkBytes, k = 4, 3
	c := NewChunker(bytes.NewReader([]byte("ab")), chunkBytes, k)

	b, err := c.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if !b.LastBlock || b.Empty {
		t.Fatalf("expected a non-empty terminal block, got %+v", b)
	}
	if b.Len[0] != 2 {
		t.Fatalf("chunk 0 length: got %d, want 2", b.Len[0])
	}
	if !bytes.Equal(b.chunk(0, chunkBytes)[:2], []byte("ab")) {
		t.Fatalf("chunk 0 content mismatch")
	}
	for i := 1; i < k; i++ {
		if b.Len[i] != chunkBytes {
			t.Fatalf("pad chunk %d length: got %d, want %d", i, b.Len[i], chunkBytes)
		}
	}
}

func TestChunkerFullBlockThenPartial(t *testing.T) {
	const chunkBytes, k = 4, 2
	// First block exactly full (8 bytes), second block partial (3 bytes).
	input := []byte("abcdefghXYZ")
	c := NewChunker(bytes.NewReader(input), chunkBytes, k)

	b1, err := c.Next()
	if err != nil {
		t.Fatalf("Next (block 1) returned error: %v", err)
	}
	if b1.LastBlock {
		t.Fatalf("block 1 should not be terminal")
	}
	if b1.ID != 0 {
		t.Fatalf("block 1 ID: got %d, want 0", b1.ID)
	}
	if !bytes.Equal(b1.chunk(0, chunkBytes), []byte("abcd")) || !bytes.Equal(b1.chunk(1, chunkBytes), []byte("efgh")) {
		t.Fatalf("block 1 content mismatch: %+v", b1)
	}

	b2, err := c.Next()
	if err != nil {
		t.Fatalf("Next (block 2) returned error: %v", err)
	}
	if !b2.LastBlock || b2.Empty {
		t.Fatalf("block 2 should be a non-empty terminal block, got %+v", b2)
	}
	if b2.ID != 1 {
		t.Fatalf("block 2 ID: got %d, want 1", b2.ID)
	}
	if b2.Len[0] != 3 || !bytes.Equal(b2.chunk(0, chunkBytes)[:3], []byte("XYZ")) {
		t.Fatalf("block 2 chunk 0 mismatch: %+v", b2)
	}
	if b2.Len[1] != chunkBytes {
		t.Fatalf("block 2 chunk 1 should be a full pad chunk")
	}

	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after terminal block, got %v", err)
	}
}

func TestChunkerExactMultipleOfBlockSize(t *testing.T) {
	const chunkBytes, k = 4, 2
	// Exactly K*ChunkBytes bytes: the terminal block must still be
	// produced and marked LastBlock, with no real==0 follow-up block.
	input := bytes.Repeat([]byte{'z'}, chunkBytes*k)
	c := NewChunker(bytes.NewReader(input), chunkBytes, k)

	b, err := c.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if !b.LastBlock {
		t.Fatalf("block spanning exactly K*ChunkBytes must be marked LastBlock")
	}
	if b.Empty {
		t.Fatalf("block with real content must not be marked Empty")
	}
	for i := 0; i < k; i++ {
		if b.Len[i] != chunkBytes {
			t.Fatalf("chunk %d length: got %d, want %d", i, b.Len[i], chunkBytes)
		}
	}

	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after the terminal block, got %v", err)
	}
}

func TestChunkerBlockIDsIncrement(t *testing.T) {
	const chunkBytes, k = 2, 1
	input := bytes.Repeat([]byte{'x'}, chunkBytes*3+1)
	c := NewChunker(bytes.NewReader(input), chunkBytes, k)

	var ids []uint32
	for {
		b, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		ids = append(ids, b.ID)
		if b.LastBlock {
			break
		}
	}
	for i, id := range ids {
		if id != uint32(i) {
			t.Fatalf("block IDs not sequential: %v", ids)
		}
	}
}

package diode

import (
	"context"
	"testing"
	"time"
)

func TestPacerDisabledWhenRateZero(t *testing.T) {
	p := newPacer(0)
	start := time.Now()
	if err := p.wait(context.Background(), 1<<20); err != nil {
		t.Fatalf("wait returned error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("pacer with rate 0 must never block")
	}
}

func TestPacerAccumulatesSentBytes(t *testing.T) {
	p := newPacer(1 << 30) // fast enough that waits are negligible
	for i := 0; i < 5; i++ {
		if err := p.wait(context.Background(), 1000); err != nil {
			t.Fatalf("wait returned error: %v", err)
		}
	}
	if p.sentBytes != 5000 {
		t.Fatalf("sentBytes: got %d, want 5000", p.sentBytes)
	}
}

func TestPacerSleepsForDeficit(t *testing.T) {
	const rateBPS = 100_000 // 100 KB/sec
	p := newPacer(rateBPS)

	clock := time.Now()
	p.now = func() time.Time { return clock }

	// Sending 10000 bytes against a frozen clock demands the full
	// 10000/100000 = 100ms budget be slept off, since elapsed time
	// never advances on its own.
	start := time.Now()
	if err := p.wait(context.Background(), 10000); err != nil {
		t.Fatalf("wait returned error: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 80*time.Millisecond {
		t.Fatalf("expected wait to block for roughly 100ms, only blocked for %v", elapsed)
	}
}

func TestPacerContextCancellation(t *testing.T) {
	p := newPacer(1) // 1 byte/sec: a large send demands a long sleep
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := p.wait(ctx, 1<<20); err == nil {
		t.Fatalf("expected wait to return an error for a cancelled context")
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatalf("cancellation should short-circuit the wait almost immediately")
	}
}

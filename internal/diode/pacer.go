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
	"time"
)

// pacer throttles the sender to a configured bytes/sec budget. There is
// no feedback channel to exert backpressure from the receiver's side
// (spec.md §4.3), so the only knob is the sender's own clock: spend a
// byte budget against wall-clock time and sleep off any surplus.
type pacer struct {
	rateBPS int // 0 disables pacing entirely

	start     time.Time
	sentBytes int64
	now       func() time.Time // injected in tests
}

func newPacer(rateBPS int) *pacer {
	return &pacer{
		rateBPS: rateBPS,
		now:     time.Now,
	}
}

// wait blocks (respecting ctx cancellation) until sending n more bytes
// would not exceed the configured rate, then accounts for them.
func (p *pacer) wait(ctx context.Context, n int) error {
	if p.rateBPS <= 0 {
		return nil
	}
	if p.start.IsZero() {
		p.start = p.now()
	}

	p.sentBytes += int64(n)
	target := time.Duration(float64(p.sentBytes) / float64(p.rateBPS) * float64(time.Second))
	elapsed := p.now().Sub(p.start)
	if d := target - elapsed; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

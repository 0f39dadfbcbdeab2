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
	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// fecCodec wraps a fixed (k, r) Reed-Solomon generator matrix. Systematic:
// the k data shards are untouched in the code word, r parity shards are
// appended. Identical (k, r) on both peers yields an identical matrix,
// per spec.md §4.2.
type fecCodec struct {
	k, r int
	rs   reedsolomon.Encoder // nil when r == 0 (no parity requested)
}

func newFECCodec(k, r int) (*fecCodec, error) {
	if k <= 0 {
		return nil, errors.Errorf("fec: k must be > 0, got %d", k)
	}
	if r < 0 {
		return nil, errors.Errorf("fec: r must be >= 0, got %d", r)
	}

	c := &fecCodec{k: k, r: r}
	if r > 0 {
		rs, err := reedsolomon.New(k, r)
		if err != nil {
			return nil, errors.Wrap(err, "fec: construct reed-solomon matrix")
		}
		c.rs = rs
	}
	return c, nil
}

// encodeParity computes the r parity shards for a full set of k data
// shards (all equal length). Returns nil with no error if r == 0.
func (c *fecCodec) encodeParity(dataShards [][]byte) ([][]byte, error) {
	if c.r == 0 {
		return nil, nil
	}

	shardLen := len(dataShards[0])
	shards := make([][]byte, c.k+c.r)
	copy(shards, dataShards)
	for i := c.k; i < c.k+c.r; i++ {
		shards[i] = make([]byte, shardLen)
	}

	if err := c.rs.Encode(shards); err != nil {
		return nil, errors.Wrap(err, "fec: encode parity")
	}
	return shards[c.k:], nil
}

// reconstructData fills in the nil entries of shards[0:k] (data shards)
// using whatever data+parity shards are present (non-nil) in the full
// k+r slice. It requires at least k non-nil shards overall; if there
// are fewer, or the system is otherwise unsolvable, it returns a
// wrapped reedsolomon error (ErrTooFewShards or similar) which the
// caller should treat as ErrBlockUnrecoverable.
func (c *fecCodec) reconstructData(shards [][]byte) error {
	if c.r == 0 {
		// No parity shards exist to lean on; any gap in shards[0:k]
		// is unrecoverable by construction.
		for _, s := range shards[:c.k] {
			if s == nil {
				return errors.New("fec: no parity available to reconstruct missing data shard")
			}
		}
		return nil
	}
	if err := c.rs.ReconstructData(shards); err != nil {
		return errors.Wrap(err, "fec: reconstruct data shards")
	}
	return nil
}

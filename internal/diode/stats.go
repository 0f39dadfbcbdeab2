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
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Stats are the diagnostic counters logged when a run ends
// and, optionally, periodically dumped to a CSV file (spec.md §7:
// MalformedPacket is "counted for diagnostics"). Adapted from the
// teacher's kcp.Snmp / std.SnmpLogger.
type Stats struct {
	MalformedPackets uint64
	DuplicatePackets uint64
	BlocksRecovered  uint64
	BlocksLost       uint64
	BlocksEmitted    uint64
}

func (s *Stats) incMalformed() { atomic.AddUint64(&s.MalformedPackets, 1) }
func (s *Stats) incDuplicate() { atomic.AddUint64(&s.DuplicatePackets, 1) }
func (s *Stats) incRecovered() { atomic.AddUint64(&s.BlocksRecovered, 1) }
func (s *Stats) incLost()      { atomic.AddUint64(&s.BlocksLost, 1) }
func (s *Stats) incEmitted()   { atomic.AddUint64(&s.BlocksEmitted, 1) }

// Header returns the CSV column names, in the same order as ToSlice.
func (s *Stats) Header() []string {
	return []string{"MalformedPackets", "DuplicatePackets", "BlocksRecovered", "BlocksLost", "BlocksEmitted"}
}

// ToSlice snapshots the counters as strings for one CSV row.
func (s *Stats) ToSlice() []string {
	return []string{
		fmt.Sprint(atomic.LoadUint64(&s.MalformedPackets)),
		fmt.Sprint(atomic.LoadUint64(&s.DuplicatePackets)),
		fmt.Sprint(atomic.LoadUint64(&s.BlocksRecovered)),
		fmt.Sprint(atomic.LoadUint64(&s.BlocksLost)),
		fmt.Sprint(atomic.LoadUint64(&s.BlocksEmitted)),
	}
}

// StatsLogger periodically appends a CSV row of s to path, rotating the
// filename through time.Format the way the teacher's SnmpLogger does.
// It runs until ctx is cancelled.
func StatsLogger(ctx context.Context, s *Stats, path string, interval time.Duration) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			logdir, logfile := filepath.Split(path)
			f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				return
			}
			w := csv.NewWriter(f)
			if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
				_ = w.Write(append([]string{"Unix"}, s.Header()...))
			}
			_ = w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, s.ToSlice()...))
			w.Flush()
			f.Close()
		case <-ctx.Done():
			return
		}
	}
}

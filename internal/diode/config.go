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
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Defaults, per spec.
const (
	DefaultPort            = 1234
	DefaultChunkBytes      = 1024
	DefaultK               = 64
	DefaultR               = 32
	DefaultRedundantFinal  = 3
	DefaultRateBPS         = 8 << 20 // 8 MiB/s
	DefaultWindowBlocks    = 64
	DefaultIdleTimeoutSecs = 2
)

// SendConfig configures the sender role.
type SendConfig struct {
	SrcIP           string `json:"src_ip"`
	DstIP           string `json:"dst_ip"`
	Port            int    `json:"port"`
	RateBPS         int    `json:"rate"`
	ChunkBytes      int    `json:"chunk_bytes"`
	K               int    `json:"k"`
	R               int    `json:"r"`
	RedundantFinal  int    `json:"redundant_final"`
	Compress        bool   `json:"compress"`
}

// ReceiveConfig configures the receiver role.
type ReceiveConfig struct {
	ListenIP      string `json:"listen_ip"`
	Port          int    `json:"port"`
	IdleTimeout   int    `json:"idle_timeout"` // seconds
	ChunkBytes    int    `json:"chunk_bytes"`
	K             int    `json:"k"`
	R             int    `json:"r"`
	Window        int    `json:"window"`
	Compress      bool   `json:"compress"`
}

// Validate enforces spec.md §7's ConfigInvalid checks before any socket
// is opened.
func (c *SendConfig) Validate() error {
	if c.DstIP == "" {
		return errors.Wrap(ErrConfigInvalid, "dst_ip is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Wrapf(ErrConfigInvalid, "port %d out of range", c.Port)
	}
	if c.ChunkBytes <= HeaderSize || c.ChunkBytes+HeaderSize > maxUDPPayload {
		return errors.Wrapf(ErrConfigInvalid, "chunk-bytes %d must fit one UDP datagram", c.ChunkBytes)
	}
	if c.K <= 0 || c.K > 255 {
		return errors.Wrapf(ErrConfigInvalid, "k %d out of range 1..255", c.K)
	}
	if c.R < 0 || c.K+c.R > 255 {
		return errors.Wrapf(ErrConfigInvalid, "r %d invalid for k %d (k+r must be <= 255)", c.R, c.K)
	}
	if c.RedundantFinal < 1 {
		return errors.Wrapf(ErrConfigInvalid, "redundant-final %d must be >= 1", c.RedundantFinal)
	}
	if c.RateBPS < 0 {
		return errors.Wrapf(ErrConfigInvalid, "rate %d must be >= 0", c.RateBPS)
	}
	return nil
}

// Validate enforces spec.md §7's ConfigInvalid checks before any socket
// is opened.
func (c *ReceiveConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Wrapf(ErrConfigInvalid, "port %d out of range", c.Port)
	}
	if c.ChunkBytes <= HeaderSize || c.ChunkBytes+HeaderSize > maxUDPPayload {
		return errors.Wrapf(ErrConfigInvalid, "chunk-bytes %d must fit one UDP datagram", c.ChunkBytes)
	}
	if c.K <= 0 || c.K > 255 {
		return errors.Wrapf(ErrConfigInvalid, "k %d out of range 1..255", c.K)
	}
	if c.R < 0 || c.K+c.R > 255 {
		return errors.Wrapf(ErrConfigInvalid, "r %d invalid for k %d (k+r must be <= 255)", c.R, c.K)
	}
	if c.Window <= 0 {
		return errors.Wrapf(ErrConfigInvalid, "window %d must be >= 1", c.Window)
	}
	if c.IdleTimeout <= 0 {
		return errors.Wrapf(ErrConfigInvalid, "idle-timeout %d must be >= 1", c.IdleTimeout)
	}
	return nil
}

// maxUDPPayload is the ceiling for CHUNK_BYTES+HeaderSize: the largest
// payload a single UDP datagram can carry over IPv4.
const maxUDPPayload = 65507

// ParseJSONConfig decodes path into dst, overriding any fields it sets.
// Grounded on the teacher's server/config.go: parseJSONConfig.
func ParseJSONConfig(dst interface{}, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(dst); err != nil {
		return errors.Wrap(err, "decode config file")
	}
	return nil
}

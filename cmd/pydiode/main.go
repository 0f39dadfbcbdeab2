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

package main

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"github.com/ClarkuCSCI/pydiode/internal/diode"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "pydiode"
	myApp.Usage = "unidirectional reliable-datagram transfer over a data diode"
	myApp.Version = VERSION
	myApp.Commands = []cli.Command{
		sendCommand,
		receiveCommand,
	}
	if err := myApp.Run(os.Args); err != nil {
		log.Printf("%+v\n", err)
		os.Exit(1)
	}
}

var sendCommand = cli.Command{
	Name:  "send",
	Usage: "read a stream from stdin and emit it onto the diode",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "dst", Usage: "destination IP on the far side of the diode"},
		cli.StringFlag{Name: "src", Value: "", Usage: "source IP to bind the send socket to"},
		cli.IntFlag{Name: "port", Value: diode.DefaultPort, Usage: "destination UDP port"},
		cli.IntFlag{Name: "rate", Value: diode.DefaultRateBPS, Usage: "pacing budget in bytes/sec, 0 to disable"},
		cli.IntFlag{Name: "chunk-bytes", Value: diode.DefaultChunkBytes, Usage: "payload bytes per chunk"},
		cli.IntFlag{Name: "k", Value: diode.DefaultK, Usage: "data chunks per block"},
		cli.IntFlag{Name: "r", Value: diode.DefaultR, Usage: "parity chunks per block"},
		cli.IntFlag{Name: "redundant-final", Value: diode.DefaultRedundantFinal, Usage: "total transmissions of the terminal block"},
		cli.BoolFlag{Name: "compress", Usage: "snappy-compress the stream before chunking"},
		cli.StringFlag{Name: "config, c", Value: "", Usage: "JSON config file, overrides flags"},
		cli.StringFlag{Name: "log", Value: "", Usage: "log file, default goes to stderr"},
		cli.BoolFlag{Name: "debug", Usage: "verbose logging"},
	},
	Action: func(c *cli.Context) error {
		cfg := diode.SendConfig{
			SrcIP:          c.String("src"),
			DstIP:          c.String("dst"),
			Port:           c.Int("port"),
			RateBPS:        c.Int("rate"),
			ChunkBytes:     c.Int("chunk-bytes"),
			K:              c.Int("k"),
			R:              c.Int("r"),
			RedundantFinal: c.Int("redundant-final"),
			Compress:       c.Bool("compress"),
		}
		if c.NArg() >= 2 {
			cfg.SrcIP, cfg.DstIP = c.Args().Get(0), c.Args().Get(1)
		}
		if c.String("config") != "" {
			if err := diode.ParseJSONConfig(&cfg, c.String("config")); err != nil {
				return err
			}
		}
		if c.Bool("debug") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		if c.String("log") != "" {
			f, err := os.OpenFile(c.String("log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				return err
			}
			defer f.Close()
			log.SetOutput(f)
		}

		log.Println("version:", VERSION)
		log.Println("dst:", cfg.DstIP, "port:", cfg.Port)
		log.Println("rate:", cfg.RateBPS)
		log.Println("chunk-bytes:", cfg.ChunkBytes, "k:", cfg.K, "r:", cfg.R)
		log.Println("redundant-final:", cfg.RedundantFinal)
		log.Println("compress:", cfg.Compress)

		laddr := &net.UDPAddr{IP: net.ParseIP(cfg.SrcIP)}
		conn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			return err
		}
		defer conn.Close()

		dst, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.DstIP, strconv.Itoa(cfg.Port)))
		if err != nil {
			return err
		}

		sender, err := diode.NewSender(cfg, conn, dst)
		if err != nil {
			return err
		}

		var r = os.Stdin
		if cfg.Compress {
			pr, pw := io.Pipe()
			cw := diode.NewCompressWriter(pw)
			go func() {
				_, cerr := diode.CopyBuffered(cw, r)
				if cerr == nil {
					cerr = cw.Close()
				} else {
					cw.Close()
				}
				pw.CloseWithError(cerr)
			}()
			err = sender.Run(context.Background(), pr)
		} else {
			err = sender.Run(context.Background(), r)
		}

		st := sender.Stats()
		log.Println("malformed:", st.MalformedPackets, "duplicate:", st.DuplicatePackets)
		return err
	},
}

var receiveCommand = cli.Command{
	Name:  "receive",
	Usage: "listen on the diode and write the recovered stream to stdout",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "listen", Value: "", Usage: "local IP to listen on"},
		cli.IntFlag{Name: "port", Value: diode.DefaultPort, Usage: "UDP port to listen on"},
		cli.IntFlag{Name: "idle-timeout", Value: diode.DefaultIdleTimeoutSecs, Usage: "seconds of silence before giving up"},
		cli.IntFlag{Name: "chunk-bytes", Value: diode.DefaultChunkBytes, Usage: "payload bytes per chunk"},
		cli.IntFlag{Name: "k", Value: diode.DefaultK, Usage: "data chunks per block"},
		cli.IntFlag{Name: "r", Value: diode.DefaultR, Usage: "parity chunks per block"},
		cli.IntFlag{Name: "window", Value: diode.DefaultWindowBlocks, Usage: "max in-flight blocks held in the reassembly window"},
		cli.BoolFlag{Name: "compress", Usage: "snappy-decompress the recovered stream"},
		cli.StringFlag{Name: "config, c", Value: "", Usage: "JSON config file, overrides flags"},
		cli.StringFlag{Name: "log", Value: "", Usage: "log file, default goes to stderr"},
		cli.StringFlag{Name: "statslog", Value: "", Usage: "periodically append diagnostic counters to this CSV file"},
		cli.IntFlag{Name: "statsperiod", Value: 5, Usage: "statslog collection period, in seconds"},
		cli.BoolFlag{Name: "debug", Usage: "verbose logging"},
	},
	Action: func(c *cli.Context) error {
		cfg := diode.ReceiveConfig{
			ListenIP:    c.String("listen"),
			Port:        c.Int("port"),
			IdleTimeout: c.Int("idle-timeout"),
			ChunkBytes:  c.Int("chunk-bytes"),
			K:           c.Int("k"),
			R:           c.Int("r"),
			Window:      c.Int("window"),
			Compress:    c.Bool("compress"),
		}
		if c.NArg() >= 1 {
			cfg.ListenIP = c.Args().Get(0)
		}
		if c.String("config") != "" {
			if err := diode.ParseJSONConfig(&cfg, c.String("config")); err != nil {
				return err
			}
		}
		if c.Bool("debug") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		if c.String("log") != "" {
			f, err := os.OpenFile(c.String("log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				return err
			}
			defer f.Close()
			log.SetOutput(f)
		}

		log.Println("version:", VERSION)
		log.Println("listen:", cfg.ListenIP, "port:", cfg.Port)
		log.Println("idle-timeout:", cfg.IdleTimeout)
		log.Println("chunk-bytes:", cfg.ChunkBytes, "k:", cfg.K, "r:", cfg.R, "window:", cfg.Window)
		log.Println("compress:", cfg.Compress)

		laddr := &net.UDPAddr{IP: net.ParseIP(cfg.ListenIP), Port: cfg.Port}
		conn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			return err
		}
		defer conn.Close()

		receiver, err := diode.NewReceiver(cfg, conn)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if c.String("statslog") != "" {
			go diode.StatsLogger(ctx, receiver.Stats(), c.String("statslog"), time.Duration(c.Int("statsperiod"))*time.Second)
		}

		var w = os.Stdout
		var runErr error
		if cfg.Compress {
			pr, pw := io.Pipe()
			go func() {
				runErr = receiver.Run(ctx, pw)
				pw.Close()
			}()
			_, copyErr := diode.CopyBuffered(w, diode.NewDecompressReader(pr))
			if runErr == nil {
				runErr = copyErr
			}
		} else {
			runErr = receiver.Run(ctx, w)
		}

		st := receiver.Stats()
		log.Println("malformed:", st.MalformedPackets, "duplicate:", st.DuplicatePackets)
		log.Println("recovered:", st.BlocksRecovered, "lost:", st.BlocksLost, "emitted:", st.BlocksEmitted)

		if runErr == diode.ErrIncompleteStream {
			return cli.NewExitError(runErr.Error(), 2)
		}
		if runErr != nil {
			return cli.NewExitError(runErr.Error(), 1)
		}
		return nil
	},
}

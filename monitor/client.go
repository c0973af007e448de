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

package monitor

import (
	"crypto/sha1"
	"net"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pkg/errors"
	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/smux"

	"github.com/AlexPateraki/Tiny-OS/kernel"
)

// Client dials a monitor Server and fetches ProcInfo snapshots over a
// single long-lived KCP+smux session, opening one stream per fetch.
type Client struct {
	cfg     Config
	session *smux.Session
}

// Dial establishes the KCP session and the smux layer on top of it,
// without fetching anything yet.
func Dial(cfg Config) (*Client, error) {
	pass := pbkdf2.Key([]byte(cfg.Key), []byte(salt), 4096, 32, sha1.New)
	block, err := selectBlockCrypt(cfg, pass)
	if err != nil {
		return nil, errors.Wrap(err, "monitor: select cipher")
	}

	kcpConn, err := kcp.DialWithOptions(cfg.RemoteAddr, block, cfg.DataShard, cfg.ParityShard)
	if err != nil {
		return nil, errors.Wrap(err, "monitor: dial")
	}
	kcpConn.SetStreamMode(true)
	kcpConn.SetWriteDelay(false)
	kcpConn.SetNoDelay(cfg.NoDelay, cfg.Interval, cfg.Resend, cfg.NoCongestion)
	kcpConn.SetMtu(cfg.MTU)
	kcpConn.SetWindowSize(cfg.SndWnd, cfg.RcvWnd)
	kcpConn.SetACKNoDelay(cfg.AckNodelay)

	var transport net.Conn = kcpConn
	if !cfg.NoComp {
		transport = newCompStream(kcpConn)
	}

	smuxConfig, err := buildSmuxConfig(cfg)
	if err != nil {
		kcpConn.Close()
		return nil, errors.Wrap(err, "monitor: smux config")
	}
	session, err := smux.Client(transport, smuxConfig)
	if err != nil {
		kcpConn.Close()
		return nil, errors.Wrap(err, "monitor: smux client")
	}
	return &Client{cfg: cfg, session: session}, nil
}

// FetchSnapshot opens one stream, asks for the process table, and
// returns the decoded result.
func (c *Client) FetchSnapshot() ([]kernel.ProcInfo, error) {
	stream, err := c.session.OpenStream()
	if err != nil {
		return nil, errors.Wrap(err, "monitor: open stream")
	}
	defer stream.Close()

	if _, err := stream.Write([]byte{cmdSnapshot}); err != nil {
		return nil, errors.Wrap(err, "monitor: send command")
	}
	return readSnapshot(stream)
}

// Close tears down the underlying smux session.
func (c *Client) Close() error {
	return c.session.Close()
}

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
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// countingWriter tallies the bytes snappy actually puts on the wire,
// so compStream can report how well ProcInfo snapshots compress
// instead of just moving bytes through silently.
type countingWriter struct {
	w       net.Conn
	written int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	atomic.AddInt64(&cw.written, int64(n))
	return n, err
}

// compStream wraps a net.Conn with snappy compression; ProcInfo
// snapshots are repeated small fixed-shape structs (mostly ASCII
// args), so they compress well, and every monitor session runs
// through this unless -nocomp. Unlike the teacher's CompStream, which
// only moves bytes through, compStream counts the raw bytes handed to
// Write against the compressed bytes snappy actually wrote to the
// underlying conn: a telemetry tunnel is exactly the kind of thing
// that should be able to report on its own transport efficiency, the
// same instinct behind the teacher's own kcp.DefaultSnmp accounting.
type compStream struct {
	conn net.Conn
	cw   *countingWriter
	w    *snappy.Writer
	r    *snappy.Reader

	rawWritten int64
}

func (c *compStream) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *compStream) Write(p []byte) (int, error) {
	if _, err := c.w.Write(p); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := c.w.Flush(); err != nil {
		return 0, errors.WithStack(err)
	}
	atomic.AddInt64(&c.rawWritten, int64(len(p)))
	return len(p), nil
}

func (c *compStream) Close() error                       { return c.conn.Close() }
func (c *compStream) LocalAddr() net.Addr                { return c.conn.LocalAddr() }
func (c *compStream) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *compStream) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *compStream) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *compStream) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// CompressionStats reports the raw bytes handed to Write against the
// compressed bytes actually written to the wire.
func (c *compStream) CompressionStats() (raw, wire int64) {
	return atomic.LoadInt64(&c.rawWritten), atomic.LoadInt64(&c.cw.written)
}

func newCompStream(conn net.Conn) *compStream {
	cw := &countingWriter{w: conn}
	return &compStream{conn: conn, cw: cw, w: snappy.NewBufferedWriter(cw), r: snappy.NewReader(conn)}
}

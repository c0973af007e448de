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
	"log"
	"net"

	"golang.org/x/crypto/pbkdf2"

	"github.com/fatih/color"
	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/smux"
	"github.com/xtaci/tcpraw"

	"github.com/AlexPateraki/Tiny-OS/kernel"
)

// salt matches the teacher's pbkdf2 salt; it has no security purpose
// of its own (it is public), it just needs to be stable so both ends
// derive the same session key from the pre-shared passphrase.
const salt = "tiny-os-monitor"

// Server exposes one Kernel's ProcInfo table to monitor clients. It
// never mutates the kernel: every session only calls
// Kernel.CollectProcInfo, itself built from the read-only OpenInfo/
// Read/Close syscalls.
type Server struct {
	k     *kernel.Kernel
	owner *kernel.PCB
	cfg   Config
}

// NewServer wires a Server to the given Kernel. owner is the PCB whose
// FIDT the server borrows to open its (short-lived, one-shot) ProcInfo
// streams — typically a dedicated process the caller Execs with a nil
// task purely to hold file descriptors, the same pattern the idle
// process (pid 0) already uses for "alive process, no running thread".
func NewServer(k *kernel.Kernel, owner *kernel.PCB, cfg Config) *Server {
	return &Server{k: k, owner: owner, cfg: cfg}
}

// ListenAndServe derives the session key, stands up the KCP (and,
// optionally, tcpraw dual-stack) listener, and serves snapshot
// sessions until the listener errors or the process exits.
func (s *Server) ListenAndServe() error {
	pass := pbkdf2.Key([]byte(s.cfg.Key), []byte(salt), 4096, 32, sha1.New)
	block, err := selectBlockCrypt(s.cfg, pass)
	if err != nil {
		return err
	}
	log.Println("monitor: crypt:", s.cfg.Crypt)

	go snmpLogger(s.k, s.owner, s.cfg.SnmpLog, s.cfg.SnmpPeriod)

	if s.cfg.TCP {
		if conn, err := tcpraw.Listen("tcp", s.cfg.Listen); err == nil {
			log.Println("monitor: listening on", s.cfg.Listen, "/tcp")
			lis, err := kcp.ServeConn(block, s.cfg.DataShard, s.cfg.ParityShard, conn)
			if err != nil {
				return err
			}
			go s.acceptLoop(lis)
		} else {
			log.Println("monitor: tcpraw disabled:", err)
		}
	}

	lis, err := kcp.ListenWithOptions(s.cfg.Listen, block, s.cfg.DataShard, s.cfg.ParityShard)
	if err != nil {
		return err
	}
	log.Println("monitor: listening on", s.cfg.Listen, "/udp")
	s.acceptLoop(lis)
	return nil
}

func (s *Server) acceptLoop(lis *kcp.Listener) {
	if err := lis.SetDSCP(s.cfg.DSCP); err != nil {
		log.Println("monitor: SetDSCP:", err)
	}
	for {
		conn, err := lis.AcceptKCP()
		if err != nil {
			log.Println("monitor: accept:", err)
			return
		}
		conn.SetStreamMode(true)
		conn.SetWriteDelay(false)
		conn.SetNoDelay(s.cfg.NoDelay, s.cfg.Interval, s.cfg.Resend, s.cfg.NoCongestion)
		conn.SetMtu(s.cfg.MTU)
		conn.SetWindowSize(s.cfg.SndWnd, s.cfg.RcvWnd)
		conn.SetACKNoDelay(s.cfg.AckNodelay)

		color.Green("monitor: connected %v", conn.RemoteAddr())
		var transport net.Conn = conn
		if !s.cfg.NoComp {
			transport = newCompStream(conn)
		}
		go s.handleSession(transport)
	}
}

func (s *Server) handleSession(conn net.Conn) {
	smuxConfig, err := buildSmuxConfig(s.cfg)
	if err != nil {
		log.Println("monitor: smux config:", err)
		conn.Close()
		return
	}
	session, err := smux.Server(conn, smuxConfig)
	if err != nil {
		log.Println("monitor: smux server:", err)
		conn.Close()
		return
	}
	defer session.Close()
	defer logCompressionStats(conn)

	for {
		stream, err := session.AcceptStream()
		if err != nil {
			color.Yellow("monitor: session closed: %v", err)
			return
		}
		go s.handleStream(stream)
	}
}

// logCompressionStats reports a session's snappy ratio once it ends,
// if it ran compressed at all (conn is a plain *kcp.UDPSession when
// -nocomp is set).
func logCompressionStats(conn net.Conn) {
	cs, ok := conn.(*compStream)
	if !ok {
		return
	}
	raw, wire := cs.CompressionStats()
	if raw == 0 {
		return
	}
	log.Printf("monitor: session wrote %d bytes compressed to %d (%.1f%%)",
		raw, wire, 100*float64(wire)/float64(raw))
}

func (s *Server) handleStream(stream *smux.Stream) {
	defer stream.Close()

	cmd := make([]byte, 1)
	if _, err := stream.Read(cmd); err != nil {
		log.Println("monitor: read command:", err)
		return
	}
	switch cmd[0] {
	case cmdSnapshot:
		snapshot := s.k.CollectProcInfo(s.owner)
		if err := writeSnapshot(stream, snapshot); err != nil {
			log.Println("monitor:", err)
		}
	default:
		log.Printf("monitor: unknown command %d", cmd[0])
	}
}


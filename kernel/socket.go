package kernel

import (
	"container/list"

	"github.com/AlexPateraki/Tiny-OS/fcb"
	"github.com/AlexPateraki/Tiny-OS/pipe"
	"github.com/AlexPateraki/Tiny-OS/sched"
)

// sockState is an SCB's place in the UNBOUND -> LISTENER|PEER
// machine (§4.6). There are no backward transitions.
type sockState int

const (
	sockUnbound sockState = iota
	sockListener
	sockPeer
)

// connRequest is one pending Connect, queued on a listener until
// Accept admits it or it times out.
type connRequest struct {
	peer        *SCB
	admitted    bool
	connectedCV sched.CondVar
	node        *list.Element // this request's node in the listener's queue
}

// SCB is a socket control block: one per socket fid, tagged by state.
type SCB struct {
	owner    *Kernel // for PORT_MAP access on Close
	fcbRef   *fcb.FCB
	refcount int
	port     Port
	state    sockState

	// LISTENER fields
	queue        *list.List // of *connRequest
	reqAvailable sched.CondVar

	// PEER fields
	peerSCB   *SCB
	readPipe  *pipe.Pipe
	writePipe *pipe.Pipe
}

var socketOps = &fcb.Ops{
	Read:  func(obj interface{}, buf []byte) int { return obj.(*SCB).read(buf) },
	Write: func(obj interface{}, buf []byte) int { return obj.(*SCB).write(buf) },
	Close: func(obj interface{}) int { return obj.(*SCB).close() },
}

// Socket implements sys_Socket (§4.6): validates the port, reserves
// an FCB and installs an UNBOUND SCB behind it.
func (k *Kernel) Socket(curproc *PCB, port Port) Fid {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.socketLocked(curproc, port)
}

func (k *Kernel) socketLocked(curproc *PCB, port Port) Fid {
	if port < NOPORT || int(port) > k.limits.MaxPort {
		return NOFILE
	}

	slots := findFreeFidtSlots(curproc.fidt, 1)
	if slots == nil {
		return NOFILE
	}

	fcbs := k.fcbTable.Reserve(1)
	if fcbs == nil {
		return NOFILE
	}

	sock := &SCB{owner: k, fcbRef: fcbs[0], refcount: 1, port: port, state: sockUnbound}
	fcbs[0].StreamObj = sock
	fcbs[0].StreamOps = socketOps

	curproc.fidt[slots[0]] = fcbs[0]
	return Fid(slots[0])
}

// Listen implements sys_Listen (§4.6).
func (k *Kernel) Listen(curproc *PCB, sock Fid) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	f := fidtLookup(curproc, sock)
	if f == nil {
		return -1
	}
	s, ok := f.StreamObj.(*SCB)
	if !ok {
		return -1
	}
	if s.port == NOPORT || int(s.port) > k.limits.MaxPort {
		return -1
	}
	if k.portMap[s.port] != nil {
		return -1
	}
	if s.state != sockUnbound {
		return -1
	}

	s.state = sockListener
	s.queue = list.New()
	s.reqAvailable = sched.NewCondVar(k.mu)
	k.portMap[s.port] = s
	return 0
}

// Accept implements sys_Accept (§4.6), with the FCB-exhaustion fix
// the source kernel lacks (DESIGN.md Resolved Open Question #2): the
// server-side FCB is reserved *before* the request is popped from the
// listener queue, so a full FIDT never leaves a phantom-admitted
// request stuck in the queue with no one left to signal it again.
func (k *Kernel) Accept(curproc *PCB, lsock Fid) Fid {
	k.mu.Lock()
	defer k.mu.Unlock()

	f := fidtLookup(curproc, lsock)
	if f == nil {
		return NOFILE
	}
	listener, ok := f.StreamObj.(*SCB)
	if !ok || listener.state != sockListener {
		return NOFILE
	}

	listener.refcount++
	defer func() { listener.refcount-- }()

	lport := listener.port
	for listener.queue.Len() == 0 && k.portMap[lport] != nil {
		listener.reqAvailable.Wait()
	}
	if k.portMap[lport] == nil {
		return NOFILE
	}

	// Pre-reserve the server-side fid slot + FCB before touching the
	// queue, so a reservation failure never leaves an admitted
	// request behind with nobody to signal it again.
	slots := findFreeFidtSlots(curproc.fidt, 1)
	if slots == nil {
		return NOFILE
	}
	fcbs := k.fcbTable.Reserve(1)
	if fcbs == nil {
		return NOFILE
	}

	e := listener.queue.Front()
	req := e.Value.(*connRequest)
	listener.queue.Remove(e)
	req.admitted = true

	serverSock := &SCB{owner: k, fcbRef: fcbs[0], refcount: 1, port: lport, state: sockUnbound}
	fcbs[0].StreamObj = serverSock
	fcbs[0].StreamOps = socketOps
	curproc.fidt[slots[0]] = fcbs[0]

	clientSock := req.peer

	c2s := pipe.New(k.limits.PipeBufferSize, k.mu) // client -> server
	s2c := pipe.New(k.limits.PipeBufferSize, k.mu) // server -> client

	serverSock.state = sockPeer
	serverSock.peerSCB = clientSock
	serverSock.readPipe = c2s
	serverSock.writePipe = s2c

	clientSock.state = sockPeer
	clientSock.peerSCB = serverSock
	clientSock.readPipe = s2c
	clientSock.writePipe = c2s

	req.connectedCV.Signal()

	return Fid(slots[0])
}

// Connect implements sys_Connect (§4.6).
func (k *Kernel) Connect(curproc *PCB, sock Fid, port Port, timeoutMS int) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	f := fidtLookup(curproc, sock)
	if f == nil {
		return -1
	}
	s, ok := f.StreamObj.(*SCB)
	if !ok {
		return -1
	}
	if port <= NOPORT || int(port) > k.limits.MaxPort {
		return -1
	}
	listener := k.portMap[port]
	if listener == nil || listener.state != sockListener {
		return -1
	}
	if s.state != sockUnbound {
		return -1
	}

	s.refcount++
	s.port = port

	req := &connRequest{peer: s, connectedCV: sched.NewCondVar(k.mu)}
	req.node = listener.queue.PushBack(req)
	listener.reqAvailable.Signal()

	for !req.admitted {
		if k.portMap[port] == nil {
			// The listener closed while we were queued: abandon the
			// request instead of waiting out the full timeout.
			if req.node != nil {
				listener.queue.Remove(req.node)
				req.node = nil
			}
			s.refcount--
			return -1
		}
		if ok := req.connectedCV.TimedWait(timeoutMS); !ok && !req.admitted {
			// Timed out, and Accept did not win the race against the
			// timer (req.admitted is rechecked rather than trusting
			// TimedWait's own ok: a Signal can land in the same instant
			// the timer fires, in which case the wait loses the race
			// but the request was genuinely admitted anyway). Pull the
			// request back out so a later Accept never tries to admit
			// an abandoned connect.
			if req.node != nil {
				listener.queue.Remove(req.node)
				req.node = nil
			}
			s.refcount--
			return -1
		}
	}

	s.refcount--
	return 0
}

// ShutDown implements sys_ShutDown (§4.6).
func (k *Kernel) ShutDown(curproc *PCB, sock Fid, how ShutdownMode) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	f := fidtLookup(curproc, sock)
	if f == nil {
		return -1
	}
	s, ok := f.StreamObj.(*SCB)
	if !ok || s.state != sockPeer {
		return -1
	}

	if how == ShutdownRead || how == ShutdownBoth {
		if s.readPipe != nil {
			s.readPipe.CloseReader()
			s.readPipe = nil
		}
	}
	if how == ShutdownWrite || how == ShutdownBoth {
		if s.writePipe != nil {
			s.writePipe.CloseWriter()
			s.writePipe = nil
		}
	}
	return 0
}

// read/write/close are the socket's stream-operations table (§4.6),
// dispatched through fcb.Ops via socketOps above — hence the lowercase
// names and the lack of a kernel-mutex lock here, already held by the
// generic Read/Write/Close syscalls in io_syscall.go.
func (s *SCB) read(buf []byte) int {
	if s.state != sockPeer || s.readPipe == nil {
		return stream_Err
	}
	if !s.readPipe.WriterOpen() && s.readPipe.Len() == 0 {
		return stream_EOF
	}
	return s.readPipe.Read(buf)
}

func (s *SCB) write(buf []byte) int {
	if s.state != sockPeer || s.writePipe == nil {
		return stream_Err
	}
	// write_pipe and the peer's read_pipe are the same underlying
	// pipe.Pipe, so "peer's read_pipe = none" and "this pipe's reader
	// has closed" are the same fact observed from either end —
	// pipe.Write already returns Err once either end has closed.
	return s.writePipe.Write(buf)
}

// close implements the socket Close stream op (§4.6). Invoked by
// fcb.FCB.Decref once the FCB's refcount reaches zero, already under
// the kernel mutex (every generic Read/Write/Close syscall in
// io_syscall.go holds k.mu for its whole body).
func (s *SCB) close() int {
	switch s.state {
	case sockPeer:
		if s.readPipe != nil {
			s.readPipe.CloseReader()
		}
		if s.writePipe != nil {
			s.writePipe.CloseWriter()
		}
	case sockListener:
		if s.owner != nil && s.owner.portMap[s.port] == s {
			s.owner.portMap[s.port] = nil
		}
		if s.reqAvailable != nil {
			s.reqAvailable.Broadcast()
		}
		if s.queue != nil {
			// Wake every still-queued Connect so each notices
			// PORT_MAP cleared and abandons its request instead of
			// waiting out its full timeout (§5 "Closing a listener
			// wakes all Accepts and all blocked Connects").
			for e := s.queue.Front(); e != nil; e = e.Next() {
				e.Value.(*connRequest).connectedCV.Broadcast()
			}
		}
	}
	return 0
}

const (
	stream_Err = -1
	stream_EOF = 0
)

func fidtLookup(curproc *PCB, fid Fid) *fcb.FCB {
	if fid < 0 || int(fid) >= len(curproc.fidt) {
		return nil
	}
	return curproc.fidt[fid]
}

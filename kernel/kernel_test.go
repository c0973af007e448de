package kernel

import (
	"testing"
	"time"
)

// blockForever is init's main task in tests: it never returns on its
// own, so init.mainThread is a real PTCB the tests can use as "self"
// for ThreadJoin/ThreadDetach identity checks.
func blockForever(ctx *ThreadContext, args []byte) int {
	<-make(chan struct{})
	return 0
}

func newTestKernel(t *testing.T) (*Kernel, *PCB) {
	t.Helper()
	k := New(DefaultLimits())
	if pid := k.Exec(nil, blockForever, nil); pid != 1 {
		t.Fatalf("init Exec returned pid %d, want 1", pid)
	}
	init := k.GetPCB(1)
	if init == nil {
		t.Fatal("GetPCB(1) returned nil after Exec")
	}
	return k, init
}

// Scenario 1: pipe echo via Exec.
func TestPipeEchoAcrossExec(t *testing.T) {
	k, init := newTestKernel(t)

	readFid, writeFid := k.Pipe(init)
	if readFid == NOFILE || writeFid == NOFILE {
		t.Fatalf("Pipe failed: %d %d", readFid, writeFid)
	}

	childTask := func(ctx *ThreadContext, args []byte) int {
		// Exec inherits the entire FIDT, including the write end this
		// child has no use for; close it immediately so the parent's
		// writer-close is the only reference keeping the pipe open,
		// exactly as a real fork()+exec() child closes fds it doesn't
		// need.
		ctx.Kernel.Close(ctx.Proc, writeFid)

		total := 0
		buf := make([]byte, 16)
		for {
			n := ctx.Kernel.Read(ctx.Proc, readFid, buf)
			if n == stream_EOF {
				break
			}
			if n < 0 {
				return -1
			}
			total += n
		}
		return total
	}

	childPid := k.Exec(init, childTask, nil)
	if childPid == NOPROC {
		t.Fatal("Exec of child failed")
	}

	if n := k.Write(init, writeFid, []byte("hello")); n != 5 {
		t.Fatalf("Write = %d, want 5", n)
	}
	if rc := k.Close(init, writeFid); rc != 0 {
		t.Fatalf("Close(writeFid) = %d, want 0", rc)
	}

	var exitval int
	if pid := k.WaitChild(init, childPid, &exitval); pid != childPid {
		t.Fatalf("WaitChild returned pid %d, want %d", pid, childPid)
	}
	if exitval != 5 {
		t.Fatalf("child exitval = %d, want 5", exitval)
	}
}

// Scenario 2: thread join/exit, then a second join fails.
func TestThreadJoinThenSecondJoinFails(t *testing.T) {
	k, init := newTestKernel(t)

	task := func(ctx *ThreadContext, args []byte) int { return 42 }
	tid := k.CreateThread(init, task, nil)
	if tid == NOTHREAD {
		t.Fatal("CreateThread failed")
	}

	mainSelf := init.mainThread

	var s int
	if rc := k.ThreadJoin(init, (*PTCB)(mainSelf), tid, &s); rc != 0 {
		t.Fatalf("first Join = %d, want 0", rc)
	}
	if s != 42 {
		t.Fatalf("join exitval = %d, want 42", s)
	}

	if rc := k.ThreadJoin(init, (*PTCB)(mainSelf), tid, &s); rc != -1 {
		t.Fatalf("second Join = %d, want -1", rc)
	}
}

// Scenario 3: detach then join fails immediately.
func TestThreadDetachThenJoinFails(t *testing.T) {
	k, init := newTestKernel(t)

	block := make(chan struct{})
	task := func(ctx *ThreadContext, args []byte) int {
		<-block
		return 0
	}
	tid := k.CreateThread(init, task, nil)
	if tid == NOTHREAD {
		t.Fatal("CreateThread failed")
	}

	if rc := k.ThreadDetach(init, tid); rc != 0 {
		t.Fatalf("Detach = %d, want 0", rc)
	}

	mainSelf := (*PTCB)(init.mainThread)
	var s int
	if rc := k.ThreadJoin(init, mainSelf, tid, &s); rc != -1 {
		t.Fatalf("Join on detached thread = %d, want -1", rc)
	}

	close(block)
}

// Scenario 4: listener handshake between two processes.
func TestListenerHandshake(t *testing.T) {
	k, init := newTestKernel(t)

	result := make(chan string, 1)
	// Connect to a port nobody listens on fails at once, so the client
	// waits until the server's Listen has succeeded.
	listening := make(chan struct{})

	serverTask := func(ctx *ThreadContext, args []byte) int {
		lsock := ctx.Kernel.Socket(ctx.Proc, 100)
		if lsock == NOFILE {
			return -1
		}
		if rc := ctx.Kernel.Listen(ctx.Proc, lsock); rc != 0 {
			return -1
		}
		close(listening)
		sfid := ctx.Kernel.Accept(ctx.Proc, lsock)
		if sfid == NOFILE {
			return -1
		}
		if n := ctx.Kernel.Write(ctx.Proc, sfid, []byte("abc")); n != 3 {
			return -1
		}
		return 0
	}
	serverPid := k.Exec(init, serverTask, nil)

	clientTask := func(ctx *ThreadContext, args []byte) int {
		csock := ctx.Kernel.Socket(ctx.Proc, NOPORT)
		if csock == NOFILE {
			return -1
		}
		<-listening
		if rc := ctx.Kernel.Connect(ctx.Proc, csock, 100, 1000); rc != 0 {
			return -1
		}
		buf := make([]byte, 3)
		n := ctx.Kernel.Read(ctx.Proc, csock, buf)
		if n != 3 {
			return -1
		}
		result <- string(buf[:n])
		return 0
	}
	clientPid := k.Exec(init, clientTask, nil)

	var ev int
	if pid := k.WaitChild(init, serverPid, &ev); pid != serverPid || ev != 0 {
		t.Fatalf("server exited pid=%d ev=%d, want %d 0", pid, ev, serverPid)
	}
	if pid := k.WaitChild(init, clientPid, &ev); pid != clientPid || ev != 0 {
		t.Fatalf("client exited pid=%d ev=%d, want %d 0", pid, ev, clientPid)
	}

	if got := <-result; got != "abc" {
		t.Fatalf("client read %q, want \"abc\"", got)
	}
}

// Scenario 5: connect timeout with nobody accepting.
func TestConnectTimeoutNoAccepter(t *testing.T) {
	k, init := newTestKernel(t)

	lsock := k.Socket(init, 100)
	if rc := k.Listen(init, lsock); rc != 0 {
		t.Fatalf("Listen = %d, want 0", rc)
	}

	csock := k.Socket(init, NOPORT)
	if rc := k.Connect(init, csock, 100, 50); rc != -1 {
		t.Fatalf("Connect with no accepter = %d, want -1", rc)
	}
}

// Scenario 6: closing a listener wakes a pending Connect.
func TestListenerCloseWakesConnect(t *testing.T) {
	k, init := newTestKernel(t)

	lsock := k.Socket(init, 100)
	if rc := k.Listen(init, lsock); rc != 0 {
		t.Fatalf("Listen = %d, want 0", rc)
	}

	connectDone := make(chan int, 1)
	clientTask := func(ctx *ThreadContext, args []byte) int {
		csock := ctx.Kernel.Socket(ctx.Proc, NOPORT)
		connectDone <- ctx.Kernel.Connect(ctx.Proc, csock, 100, 5000)
		return 0
	}
	k.CreateThread(init, clientTask, nil)

	if rc := k.Close(init, lsock); rc != 0 {
		t.Fatalf("Close(listener) = %d, want 0", rc)
	}

	select {
	case rc := <-connectDone:
		if rc != -1 {
			t.Fatalf("Connect after listener close = %d, want -1", rc)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect never woke up after listener close")
	}
}

// CollectProcInfo is a thin wrapper over OpenInfo/Read/Close; this
// checks it decodes the wire records it reads for both init and a
// freshly Exec'd child.
func TestCollectProcInfo(t *testing.T) {
	k, init := newTestKernel(t)

	childDone := make(chan struct{})
	child := func(ctx *ThreadContext, args []byte) int {
		<-childDone
		return 0
	}
	childPid := k.Exec(init, child, []byte("worker"))

	snapshot := k.CollectProcInfo(init)
	close(childDone)

	var exitval int
	if pid := k.WaitChild(init, childPid, &exitval); pid != childPid {
		t.Fatalf("WaitChild = %d, want %d", pid, childPid)
	}

	var initInfo, childInfo *ProcInfo
	for i := range snapshot {
		switch snapshot[i].Pid {
		case 1:
			initInfo = &snapshot[i]
		case childPid:
			childInfo = &snapshot[i]
		}
	}

	if initInfo == nil {
		t.Fatal("snapshot missing init's own record")
	}
	if !initInfo.Alive || initInfo.ThreadCount < 1 {
		t.Fatalf("init record = %+v, want Alive and ThreadCount >= 1", *initInfo)
	}

	if childInfo == nil {
		t.Fatal("snapshot missing the freshly Exec'd child")
	}
	if childInfo.PPid != 1 {
		t.Fatalf("child PPid = %d, want 1", childInfo.PPid)
	}
	if !childInfo.Alive {
		t.Fatalf("child record = %+v, want Alive", *childInfo)
	}
	if string(childInfo.Args) != "worker" {
		t.Fatalf("child Args = %q, want %q", childInfo.Args, "worker")
	}
	if childInfo.ArgsLen != len("worker") {
		t.Fatalf("child ArgsLen = %d, want %d", childInfo.ArgsLen, len("worker"))
	}
}

// A process whose args exceed ProcInfoMaxArgsSize should report its
// true length via ArgsLen even though Args itself comes back clipped.
func TestCollectProcInfoTruncatesLongArgs(t *testing.T) {
	limits := DefaultLimits()
	limits.ProcInfoMaxArgsSize = 4
	k := New(limits)
	if pid := k.Exec(nil, blockForever, nil); pid != 1 {
		t.Fatalf("init Exec returned pid %d, want 1", pid)
	}
	init := k.GetPCB(1)

	childDone := make(chan struct{})
	child := func(ctx *ThreadContext, args []byte) int {
		<-childDone
		return 0
	}
	longArgs := "far longer than four bytes"
	childPid := k.Exec(init, child, []byte(longArgs))

	snapshot := k.CollectProcInfo(init)
	close(childDone)
	var exitval int
	k.WaitChild(init, childPid, &exitval)

	var childInfo *ProcInfo
	for i := range snapshot {
		if snapshot[i].Pid == childPid {
			childInfo = &snapshot[i]
		}
	}
	if childInfo == nil {
		t.Fatal("snapshot missing the freshly Exec'd child")
	}
	if childInfo.ArgsLen != len(longArgs) {
		t.Fatalf("ArgsLen = %d, want true length %d", childInfo.ArgsLen, len(longArgs))
	}
	if len(childInfo.Args) != limits.ProcInfoMaxArgsSize {
		t.Fatalf("len(Args) = %d, want clipped to %d", len(childInfo.Args), limits.ProcInfoMaxArgsSize)
	}
	if string(childInfo.Args) != longArgs[:limits.ProcInfoMaxArgsSize] {
		t.Fatalf("Args = %q, want prefix %q", childInfo.Args, longArgs[:limits.ProcInfoMaxArgsSize])
	}
}

package kernel

// Pid, Fid, Tid are the small-integer/opaque handles spec.md's
// GLOSSARY defines. Tid's identity is the owning PTCB's own address
// (spec.md §3, §9: "a PTCB's tid identity is the PTCB's own
// address"), expressed directly as a distinct pointer type rather
// than a cast-to-integer, so the Go compiler enforces "never trust
// the raw value" for us — there is no raw value, only the pointer.
type Pid int
type Fid int
type Tid *PTCB
type Port int

// Sentinel "absent" values (GLOSSARY). NOTHREAD is a var, not a
// const: Go constants cannot hold pointer values, and a Tid's zero
// value (nil) is exactly the sentinel spec.md wants.
const (
	NOPROC Pid  = -1
	NOFILE Fid  = -1
	NOPORT Port = -1
)

var NOTHREAD Tid = nil

// Limits are the implementation-defined-but-fixed-at-build-time
// constants spec.md §6 calls out: MAX_PROC, MAX_FILEID, MAX_PORT,
// PIPE_BUFFER_SIZE, PROCINFO_MAX_ARGS_SIZE.
type Limits struct {
	MaxProc             int
	MaxFileID           int
	MaxPort             int
	PipeBufferSize      int
	ProcInfoMaxArgsSize int
}

// DefaultLimits mirrors the modest sizes a small educational kernel
// would compile with.
func DefaultLimits() Limits {
	return Limits{
		MaxProc:             64,
		MaxFileID:           16,
		MaxPort:             1023,
		PipeBufferSize:      4096,
		ProcInfoMaxArgsSize: 128,
	}
}

// Task is a user-space entry point: a process's main function or a
// thread's start function, taking an owned copy of its argument bytes
// and returning its exit value. argl from spec.md §3/§6 is simply
// len(args) in this rendering — a Go slice already carries its own
// length, so no separate count is threaded alongside it.
//
// Task takes an explicit *ThreadContext instead of reading CURPROC/
// cur_thread out of ambient state, per spec.md §9's Design Note
// ("replace the CURPROC/cur_thread macros by passing an explicit
// scheduler context to each syscall entry"): every syscall in this
// package takes the caller's *PCB (and, for thread calls, *PTCB)
// explicitly, and ThreadContext is exactly the bundle of those two a
// running task needs to make further syscalls on its own behalf.
type Task func(ctx *ThreadContext, args []byte) int

// ThreadContext is the explicit "current thread/process" a running
// Task carries instead of ambient/goroutine-local state.
type ThreadContext struct {
	Kernel *Kernel
	Proc   *PCB
	Self   *PTCB
}

// ShutdownMode selects which half of a peer socket sys_ShutDown
// closes.
type ShutdownMode int

const (
	ShutdownRead ShutdownMode = iota
	ShutdownWrite
	ShutdownBoth
)

// Package kernel implements the process table (C3), thread manager
// (C4), process manager (C5), socket layer (C6) and ProcInfo stream
// (C7) of spec.md, plus every system call in spec.md §6. All mutation
// happens under a single kernel mutex, exactly as spec.md §5
// describes: "All mutation occurs under the global kernel mutex held
// by the caller."
package kernel

import (
	"github.com/AlexPateraki/Tiny-OS/fcb"
	"github.com/AlexPateraki/Tiny-OS/sched"
)

// Kernel owns the process table, the port map, the PCB free list and
// the one kernel mutex that serializes every core mutation (spec.md's
// Design Notes: "encapsulate as a Kernel object that owns them and is
// passed (or singleton-accessed) by syscall handlers").
type Kernel struct {
	mu     sched.Mutex
	limits Limits

	pt       []*PCB
	freeList []*PCB

	portMap      []*SCB // index 0..MaxPort
	processCount int

	fcbTable *fcb.Table
}

// New builds a Kernel and immediately execs the parentless idle
// process (pid 0), mirroring initialize_processes()'s
// Exec(NULL,0,NULL) call.
func New(limits Limits) *Kernel {
	k := &Kernel{
		limits: limits,
		pt:     make([]*PCB, limits.MaxProc),
		// generous FCB table: pipes need 2 FCBs each, sockets 1, the
		// ProcInfo stream 1 — MaxProc*MaxFileID is a safe upper bound
		// on concurrently open files across every process.
		fcbTable: fcb.NewTable(limits.MaxProc * limits.MaxFileID),
		portMap:  make([]*SCB, limits.MaxPort+1),
	}
	k.mu = sched.NewMutex()

	k.freeList = make([]*PCB, 0, limits.MaxProc)
	for p := 0; p < limits.MaxProc; p++ {
		pcb := newPCB(Pid(p), k.mu, limits.MaxFileID)
		k.pt[p] = pcb
		k.freeList = append(k.freeList, pcb)
	}

	if pid := k.Exec(nil, nil, nil); pid != 0 {
		panic("kernel: idle process must be pid 0")
	}
	return k
}

// Limits returns the kernel's fixed tunables.
func (k *Kernel) Limits() Limits { return k.limits }

// getPid returns NOPROC for a nil PCB, or its table index otherwise.
func getPid(pcb *PCB) Pid {
	if pcb == nil {
		return NOPROC
	}
	return pcb.pid
}

// GetPCB returns the PCB at pid, or nil if the slot is FREE or out of
// range (get_pcb, §4.3).
func (k *Kernel) GetPCB(pid Pid) *PCB {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.getPCBLocked(pid)
}

func (k *Kernel) getPCBLocked(pid Pid) *PCB {
	if pid < 0 || int(pid) >= len(k.pt) {
		return nil
	}
	p := k.pt[pid]
	if p.state == Free {
		return nil
	}
	return p
}

// acquirePCB pops the free list and marks the slot ALIVE (§4.3). Must
// be called with k.mu held.
func (k *Kernel) acquirePCB() *PCB {
	if len(k.freeList) == 0 {
		return nil
	}
	pcb := k.freeList[0]
	k.freeList = k.freeList[1:]
	pcb.state = Alive
	k.processCount++
	return pcb
}

// releasePCB returns a ZOMBIE slot to FREE (§4.3). Must be called
// with k.mu held.
func (k *Kernel) releasePCB(pcb *PCB) {
	pcb.state = Free
	pcb.parent = nil
	pcb.mainTask = nil
	pcb.args = nil
	pcb.exitval = 0
	pcb.mainThread = nil
	for i := range pcb.fidt {
		pcb.fidt[i] = nil
	}
	k.freeList = append(k.freeList, pcb)
	k.processCount--
}

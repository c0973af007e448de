package kernel

import (
	"container/list"

	"github.com/AlexPateraki/Tiny-OS/sched"
)

// PTCB is a per-thread control block (§3): one per user-visible
// thread, linked into its owning PCB's ptcbList until freed.
type PTCB struct {
	owner *PCB
	node  *list.Element // this PTCB's node in owner.ptcbList

	thread *sched.Thread
	task   Task
	args   []byte

	exitval  int
	exited   bool
	detached bool
	refcount int
	exitCV   sched.CondVar
}

// CreateThread implements sys_CreateThread (§4.4): allocates a PTCB,
// links it into curproc's ptcbList, spawns the trampoline goroutine,
// and returns the new thread's id.
func (k *Kernel) CreateThread(curproc *PCB, task Task, args []byte) Tid {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.createThreadLocked(curproc, task, args)
}

// createThreadLocked must be called with k.mu held.
func (k *Kernel) createThreadLocked(curproc *PCB, task Task, args []byte) Tid {
	ptcb := &PTCB{
		owner:  curproc,
		task:   task,
		args:   args,
		exitCV: sched.NewCondVar(k.mu),
	}
	ptcb.node = curproc.ptcbList.PushBack(ptcb)
	curproc.threadCnt++

	ctx := &ThreadContext{Kernel: k, Proc: curproc, Self: ptcb}
	ptcb.thread = sched.Spawn(func() {
		exitval := task(ctx, args)
		k.ThreadExit(ptcb, exitval)
	})

	return Tid(ptcb)
}

// ThreadSelf implements sys_ThreadSelf: trivial once the caller
// already carries its own PTCB (the Go rendering of "current thread"
// is the explicit receiver every syscall takes, per spec.md §9's
// Design Note on replacing the CURPROC/cur_thread ambient macros with
// an explicit context).
func ThreadSelf(self *PTCB) Tid {
	return Tid(self)
}

// ThreadJoin implements sys_ThreadJoin (§4.4).
func (k *Kernel) ThreadJoin(curproc *PCB, self *PTCB, tid Tid, exitval *int) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	target := (*PTCB)(tid)
	if target == nil || !ptcbInList(curproc, target) {
		return -1
	}
	if target == self {
		return -1
	}
	if target.detached {
		return -1
	}

	target.refcount++
	for !target.exited && !target.detached {
		target.exitCV.Wait()
	}
	target.refcount--

	if target.detached {
		return -1
	}

	if exitval != nil {
		*exitval = target.exitval
	}

	if target.refcount == 0 {
		removePTCB(target)
	}

	return 0
}

// ThreadDetach implements sys_ThreadDetach (§4.4).
func (k *Kernel) ThreadDetach(curproc *PCB, tid Tid) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	target := (*PTCB)(tid)
	if target == nil || !ptcbInList(curproc, target) {
		return -1
	}
	if target.exited {
		return -1
	}

	target.detached = true
	if target.refcount > 0 {
		target.exitCV.Broadcast()
	}
	return 0
}

// ThreadExit implements sys_ThreadExit (§4.4): if the caller is not
// the last thread in its process it records its exit value and sleeps
// EXITED; if it is the last thread it runs process teardown (§4.5)
// first.
func (k *Kernel) ThreadExit(self *PTCB, exitval int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.threadExitLocked(self, exitval)
}

// threadExitLocked must be called with k.mu held; it backs both
// ThreadExit and Exit (sys_Exit delegates to sys_ThreadExit, §4.5).
func (k *Kernel) threadExitLocked(self *PTCB, exitval int) {
	curproc := self.owner
	curproc.threadCnt--
	remaining := curproc.threadCnt

	if remaining == 0 {
		k.teardownLocked(curproc, self, exitval)
		return
	}

	// Irrespective of detached: a straggling joiner must still be
	// woken even on a detached thread's exit (§4.4).
	self.exited = true
	self.exitval = exitval
	self.exitCV.Broadcast()
}

func ptcbInList(owner *PCB, target *PTCB) bool {
	for e := owner.ptcbList.Front(); e != nil; e = e.Next() {
		if e.Value.(*PTCB) == target {
			return true
		}
	}
	return false
}

func removePTCB(p *PTCB) {
	if p.node != nil {
		p.owner.ptcbList.Remove(p.node)
		p.node = nil
	}
}

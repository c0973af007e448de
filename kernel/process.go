package kernel

// Exec implements sys_Exec (§4.2): allocates a PCB, links it under
// parent's children list (unless parent is nil, the idle/init case),
// and — when task is non-nil — spawns the process's main thread.
func (k *Kernel) Exec(parent *PCB, task Task, args []byte) Pid {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.execLocked(parent, task, args)
}

func (k *Kernel) execLocked(parent *PCB, task Task, args []byte) Pid {
	pcb := k.acquirePCB()
	if pcb == nil {
		return NOPROC
	}

	// pid 0 (idle) and pid 1 (init) are always parentless, whatever
	// the caller passed.
	if pcb.pid <= 1 {
		parent = nil
	}

	pcb.parent = parent
	pcb.mainTask = task
	pcb.exitval = 0
	pcb.threadCnt = 0

	if parent != nil {
		pcb.childNode = parent.children.PushBack(pcb)

		// Inherit the entire FIDT element-wise, bumping each FCB's
		// refcount (§4.5 step 2).
		for i, f := range parent.fidt {
			if f != nil {
				f.Incref()
				pcb.fidt[i] = f
			}
		}
	}

	if args != nil {
		owned := make([]byte, len(args))
		copy(owned, args)
		pcb.args = owned
	} else {
		pcb.args = nil
	}

	if task != nil {
		pcb.mainThread = k.createThreadLocked(pcb, task, pcb.args)
	}

	return pcb.pid
}

// GetPid implements sys_GetPid: a process's pid never changes after
// Exec, so no kernel lock is needed to read it.
func (k *Kernel) GetPid(curproc *PCB) Pid {
	return getPid(curproc)
}

// GetPPid implements sys_GetPPid. A parent pointer can change under
// reparenting (§4.5), so this reads it under the kernel lock.
func (k *Kernel) GetPPid(curproc *PCB) Pid {
	k.mu.Lock()
	defer k.mu.Unlock()
	return getPid(curproc.parent)
}

// WaitChild implements sys_WaitChild (§4.2): blocks the caller until
// the requested child (or, with cpid == NOPROC, any child) becomes a
// zombie, reaps it and returns its pid and exit value.
func (k *Kernel) WaitChild(curproc *PCB, cpid Pid, exitval *int) Pid {
	k.mu.Lock()
	defer k.mu.Unlock()

	if cpid == NOPROC {
		return k.waitForAnyChildLocked(curproc, exitval)
	}
	return k.waitForSpecificChildLocked(curproc, cpid, exitval)
}

func (k *Kernel) waitForSpecificChildLocked(curproc *PCB, cpid Pid, exitval *int) Pid {
	child := k.getPCBLocked(cpid)
	if child == nil || child.parent != curproc {
		return NOPROC
	}

	for child.state != Zombie {
		curproc.childExit.Wait()
	}

	if child.exitedNode != nil {
		curproc.exited.Remove(child.exitedNode)
		child.exitedNode = nil
	}
	if exitval != nil {
		*exitval = child.exitval
	}

	pid := child.pid
	k.releasePCB(child)
	return pid
}

func (k *Kernel) waitForAnyChildLocked(curproc *PCB, exitval *int) Pid {
	if curproc.children.Len() == 0 && curproc.exited.Len() == 0 {
		return NOPROC
	}

	for curproc.exited.Len() == 0 {
		curproc.childExit.Wait()
	}

	e := curproc.exited.Front()
	child := e.Value.(*PCB)
	curproc.exited.Remove(e)
	child.exitedNode = nil

	if exitval != nil {
		*exitval = child.exitval
	}

	pid := child.pid
	k.releasePCB(child)
	return pid
}

// Exit implements sys_Exit (§4.5): records the exit value, drains
// every child to zombie first if the caller is init (pid 1, which has
// nowhere left to reparent orphans to), then delegates to
// sys_ThreadExit — exactly like any thread calling ThreadExit, this
// only actually tears curproc down if self is its last thread.
func (k *Kernel) Exit(curproc *PCB, self *PTCB, exitval int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	curproc.exitval = exitval

	if curproc.pid == 1 {
		for k.waitForAnyChildLocked(curproc, nil) != NOPROC {
		}
	}

	k.threadExitLocked(self, exitval)
}

// teardownLocked runs full process teardown (§4.5) once a process has
// no more running threads: reparent surviving children to init, merge
// curproc's zombie (exited) children onto init's list, zombify
// curproc itself under its own parent, release its open files, and
// wake every thread still waiting on it. Must be called with k.mu
// held.
func (k *Kernel) teardownLocked(curproc *PCB, self *PTCB, exitval int) {
	curproc.exitval = exitval

	if curproc.pid != 1 {
		init := k.getPCBLocked(1)

		// Reparent surviving children to init, matching the original
		// kernel's rlist_pop_front + rlist_push_front behavior: this
		// reverses the children's relative order rather than
		// preserving it (spec.md §4.5 only promises preserved order
		// for the exited list, not for reparenting) — pop from the
		// front of curproc's list, push to the front of init's.
		for e := curproc.children.Front(); e != nil; {
			next := e.Next()
			child := e.Value.(*PCB)
			curproc.children.Remove(e)
			child.parent = init
			if init != nil {
				child.childNode = init.children.PushFront(child)
			} else {
				child.childNode = nil
			}
			e = next
		}

		// Merge curproc's already-zombie children onto init's exited
		// list and wake init in case it is waiting for any child.
		if init != nil && curproc.exited.Len() > 0 {
			for e := curproc.exited.Front(); e != nil; {
				next := e.Next()
				z := e.Value.(*PCB)
				curproc.exited.Remove(e)
				z.exitedNode = init.exited.PushBack(z)
				e = next
			}
			init.childExit.Broadcast()
		}
	}

	// Zombify curproc itself under its own parent.
	parent := curproc.parent
	curproc.state = Zombie
	if parent != nil {
		if curproc.childNode != nil {
			parent.children.Remove(curproc.childNode)
			curproc.childNode = nil
		}
		curproc.exitedNode = parent.exited.PushBack(curproc)
		parent.childExit.Broadcast()
	}

	// Release open files.
	curproc.args = nil
	for i, f := range curproc.fidt {
		if f == nil {
			continue
		}
		curproc.fidt[i] = nil
		if _, freed := f.Decref(); freed {
			k.fcbTable.Release()
		}
	}
	curproc.mainThread = nil

	// Wake every thread still attached to curproc — not just self —
	// per the "broadcast exit_cv on every PTCB" resolution of the
	// join-during-teardown race (DESIGN.md Resolved Open Question #1):
	// a joiner blocked on a sibling thread must not be left stranded
	// just because the process is tearing down around it.
	for e := curproc.ptcbList.Front(); e != nil; e = e.Next() {
		p := e.Value.(*PTCB)
		p.exited = true
		p.exitCV.Broadcast()
	}
	curproc.ptcbList.Init()

	if parent == nil && curproc.pid != 1 {
		// Parentless and not init: nothing will ever reap this PCB
		// (this is only the idle process in practice), so release it
		// immediately instead of leaving a permanent zombie.
		k.releasePCB(curproc)
	}
}

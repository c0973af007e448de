package kernel

import (
	"container/list"

	"github.com/AlexPateraki/Tiny-OS/fcb"
	"github.com/AlexPateraki/Tiny-OS/sched"
)

// ProcState is a PCB's place in the FREE -> ALIVE -> ZOMBIE -> FREE
// lifecycle (§3).
type ProcState int

const (
	Free ProcState = iota
	Alive
	Zombie
)

func (s ProcState) String() string {
	switch s {
	case Free:
		return "FREE"
	case Alive:
		return "ALIVE"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// PCB is a process control block, one per table slot (§3). The
// intrusive lists of the source kernel (children_list, exited_list,
// ptcb_list) are rendered with container/list: spec.md §1 explicitly
// abstracts the intrusive-list utility away as an external
// collaborator ("ordered sequence of T with constant-time front/back/
// remove by node"), and container/list is the stdlib's direct
// implementation of exactly that contract — no third-party intrusive-
// list library in the example pack improves on it for this.
type PCB struct {
	pid   Pid
	state ProcState

	parent   *PCB
	children *list.List // of *PCB
	exited   *list.List // of *PCB, zombie children awaiting reap

	// the node this PCB occupies in its parent's children/exited
	// list, so it can remove or relocate itself in O(1).
	childNode  *list.Element
	exitedNode *list.Element

	mainTask  Task
	args      []byte
	exitval   int
	threadCnt int
	childExit sched.CondVar

	ptcbList *list.List // of *PTCB

	mainThread Tid

	fidt []*fcb.FCB
}

func newPCB(pid Pid, mu sched.Mutex, maxFileID int) *PCB {
	return &PCB{
		pid:       pid,
		state:     Free,
		children:  list.New(),
		exited:    list.New(),
		ptcbList:  list.New(),
		childExit: sched.NewCondVar(mu),
		fidt:      make([]*fcb.FCB, maxFileID),
	}
}

package kernel

import (
	"github.com/AlexPateraki/Tiny-OS/fcb"
	"github.com/AlexPateraki/Tiny-OS/pipe"
)

var pipeReadOps = &fcb.Ops{
	Read: func(obj interface{}, buf []byte) int { return obj.(*pipe.Pipe).Read(buf) },
	Close: func(obj interface{}) int {
		return obj.(*pipe.Pipe).CloseReader()
	},
}

var pipeWriteOps = &fcb.Ops{
	Write: func(obj interface{}, buf []byte) int { return obj.(*pipe.Pipe).Write(buf) },
	Close: func(obj interface{}) int {
		return obj.(*pipe.Pipe).CloseWriter()
	},
}

// findFreeFidtSlots returns the first n distinct free indices in fidt
// in ascending order, or nil if fewer than n are available.
func findFreeFidtSlots(fidt []*fcb.FCB, n int) []int {
	out := make([]int, 0, n)
	for i, f := range fidt {
		if f == nil {
			out = append(out, i)
			if len(out) == n {
				return out
			}
		}
	}
	return nil
}

// Pipe implements sys_Pipe (§4.2, GLOSSARY "pipe"): reserves two FCBs
// from the shared table, wires them to the two ends of a single
// pipe.Pipe via fcb.Ops, installs them into curproc's FIDT at the
// first two free slots, and returns their fids.
func (k *Kernel) Pipe(curproc *PCB) (readFid, writeFid Fid) {
	k.mu.Lock()
	defer k.mu.Unlock()

	slots := findFreeFidtSlots(curproc.fidt, 2)
	if slots == nil {
		return NOFILE, NOFILE
	}

	fcbs := k.fcbTable.Reserve(2)
	if fcbs == nil {
		return NOFILE, NOFILE
	}

	p := pipe.New(k.limits.PipeBufferSize, k.mu)

	fcbs[0].StreamObj = p
	fcbs[0].StreamOps = pipeReadOps
	fcbs[1].StreamObj = p
	fcbs[1].StreamOps = pipeWriteOps

	curproc.fidt[slots[0]] = fcbs[0]
	curproc.fidt[slots[1]] = fcbs[1]

	return Fid(slots[0]), Fid(slots[1])
}

package kernel

import (
	"bytes"
	"encoding/binary"

	"github.com/AlexPateraki/Tiny-OS/fcb"
)

// procInfoRecordSize is the fixed wire size of one ProcInfo record:
// five int32 fields (pid, ppid, alive, thread_count, argl) plus a
// fixed-capacity args blob holding min(argl, maxArgs) bytes, zero-
// padded to maxArgs.
func procInfoRecordSize(maxArgs int) int {
	return 5*4 + maxArgs
}

// procInfoCursor is the stream object OpenInfo installs: a cursor
// walking the process table from the start, skipping FREE slots one
// at a time and returning EOF once it walks off the end while still
// on a FREE slot (§4.7).
type procInfoCursor struct {
	k    *Kernel
	next Pid
}

var procInfoOps = &fcb.Ops{
	Read:  func(obj interface{}, buf []byte) int { return obj.(*procInfoCursor).read(buf) },
	Close: func(obj interface{}) int { return obj.(*procInfoCursor).close() },
}

// OpenInfo implements the OpenInfo syscall (§4.7): installs a
// procInfoCursor behind a fresh FCB in the first free FIDT slot.
func (k *Kernel) OpenInfo(curproc *PCB) Fid {
	k.mu.Lock()
	defer k.mu.Unlock()

	slots := findFreeFidtSlots(curproc.fidt, 1)
	if slots == nil {
		return NOFILE
	}
	fcbs := k.fcbTable.Reserve(1)
	if fcbs == nil {
		return NOFILE
	}

	cur := &procInfoCursor{k: k, next: 0}
	fcbs[0].StreamObj = cur
	fcbs[0].StreamOps = procInfoOps
	curproc.fidt[slots[0]] = fcbs[0]
	return Fid(slots[0])
}

// read advances the cursor past any FREE slots, marshals the next
// live PCB into a fixed-size record (pid, ppid, alive, thread_count,
// argl, then args truncated to ProcInfoMaxArgsSize) and copies
// min(record size, len(buf)) bytes out — the Go rendering of "copy
// min(sizeof(procinfo), size) bytes to the user buffer" (§4.7). argl
// is the process's true, untruncated argument length: kept as its own
// field (distinct from the byte count of the truncated blob that
// follows it) so a caller can tell a long argument list was clipped
// instead of silently seeing a short one. main_task is a function
// value in this kernel, not an address with cross-process meaning, so
// it is intentionally not part of the wire record; callers wanting it
// use MainTaskOf.
func (c *procInfoCursor) read(buf []byte) int {
	k := c.k
	for int(c.next) < len(k.pt) && k.pt[c.next].state == Free {
		c.next++
	}
	if int(c.next) >= len(k.pt) {
		return stream_EOF
	}

	pcb := k.pt[c.next]
	c.next++

	alive := int32(0)
	if pcb.state == Alive {
		alive = 1
	}

	argl := len(pcb.args)
	n := argl
	if n > k.limits.ProcInfoMaxArgsSize {
		n = k.limits.ProcInfoMaxArgsSize
	}

	var rec bytes.Buffer
	binary.Write(&rec, binary.LittleEndian, int32(pcb.pid))
	binary.Write(&rec, binary.LittleEndian, int32(getPid(pcb.parent)))
	binary.Write(&rec, binary.LittleEndian, alive)
	binary.Write(&rec, binary.LittleEndian, int32(pcb.threadCnt))
	binary.Write(&rec, binary.LittleEndian, int32(argl))
	rec.Write(pcb.args[:n])
	rec.Write(make([]byte, k.limits.ProcInfoMaxArgsSize-n))

	return copy(buf, rec.Bytes())
}

// MainTaskOf returns the Task installed at pid, or nil if the slot is
// FREE or out of range — the structured escape hatch for the one
// record field that cannot survive a byte-oriented Read.
func (k *Kernel) MainTaskOf(pid Pid) Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	pcb := k.getPCBLocked(pid)
	if pcb == nil {
		return nil
	}
	return pcb.mainTask
}

func (c *procInfoCursor) close() int {
	return 0
}

// ProcInfo is the decoded form of one OpenInfo record: the typed
// counterpart to the raw bytes read() marshals, for callers (the
// monitor subsystem, tests) that want the process table without
// hand-parsing the wire format themselves.
type ProcInfo struct {
	Pid         Pid
	PPid        Pid
	Alive       bool
	ThreadCount int
	// ArgsLen is the process's true, untruncated argument length.
	// Args holds only the first min(ArgsLen, ProcInfoMaxArgsSize)
	// bytes — ArgsLen > len(Args) means the args were clipped on the
	// wire.
	ArgsLen int
	Args    []byte
}

// CollectProcInfo opens an info stream as curproc, drains it to EOF
// decoding every record, closes the stream, and returns the snapshot.
// It is built entirely out of OpenInfo/Read/Close — the same three
// syscalls any other caller of the ProcInfo stream would use — so it
// exercises no kernel state a user-space caller couldn't reach itself.
func (k *Kernel) CollectProcInfo(curproc *PCB) []ProcInfo {
	fid := k.OpenInfo(curproc)
	if fid == NOFILE {
		return nil
	}
	defer k.Close(curproc, fid)

	maxArgs := k.limits.ProcInfoMaxArgsSize
	buf := make([]byte, procInfoRecordSize(maxArgs))
	var out []ProcInfo
	for {
		n := k.Read(curproc, fid, buf)
		if n == stream_EOF {
			break
		}
		if n < 5*4 {
			break
		}
		rec := buf[:n]
		info := ProcInfo{
			Pid:         Pid(int32(binary.LittleEndian.Uint32(rec[0:4]))),
			PPid:        Pid(int32(binary.LittleEndian.Uint32(rec[4:8]))),
			Alive:       binary.LittleEndian.Uint32(rec[8:12]) != 0,
			ThreadCount: int(int32(binary.LittleEndian.Uint32(rec[12:16]))),
			ArgsLen:     int(int32(binary.LittleEndian.Uint32(rec[16:20]))),
		}
		written := info.ArgsLen
		if written > maxArgs {
			written = maxArgs
		}
		if 20+written <= len(rec) {
			info.Args = append([]byte(nil), rec[20:20+written]...)
		}
		out = append(out, info)
	}
	return out
}

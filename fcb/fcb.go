// Package fcb is the file-control-block allocator and refcounting
// collaborator spec.md §1 calls out as external to the core: the core
// only reads/writes an FCB's stream object and its stream-operations
// table, and only calls Reserve/Incref/Decref to manage its lifetime.
package fcb

import "sync"

// Ops is the per-stream-kind dispatch table (C1): Read/Write/Close on
// the opaque StreamObj. Open is part of the table in the source
// kernel but is never invoked for in-kernel stream creation (every
// stream here is built directly by Pipe/Socket/OpenInfo), so it is
// omitted rather than carried as a dead field.
type Ops struct {
	Read  func(obj interface{}, buf []byte) int
	Write func(obj interface{}, buf []byte) int
	Close func(obj interface{}) int
}

// FCB is a file control block: a refcounted handle to a stream object
// plus its operations table.
type FCB struct {
	mu        sync.Mutex
	refcount  int
	StreamObj interface{}
	StreamOps *Ops
}

// Incref bumps the reference count. Called with the kernel mutex held
// by convention, matching spec.md's FCB_incref contract.
func (f *FCB) Incref() {
	f.mu.Lock()
	f.refcount++
	f.mu.Unlock()
}

// Decref drops the reference count and, once it reaches zero, closes
// the underlying stream and reports freed=true so the caller can
// release the slot back to its Table.
func (f *FCB) Decref() (closeResult int, freed bool) {
	f.mu.Lock()
	f.refcount--
	rc := f.refcount
	f.mu.Unlock()
	if rc > 0 {
		return 0, false
	}
	if f.StreamOps != nil && f.StreamOps.Close != nil {
		return f.StreamOps.Close(f.StreamObj), true
	}
	return 0, true
}

// Table is a fixed-capacity FCB allocator, the Go analogue of the
// source kernel's file table + FCB_reserve. It is independent of any
// process's FIDT; a process's FIDT merely holds *FCB pointers
// obtained from Reserve.
type Table struct {
	mu   sync.Mutex
	cap  int
	live int
}

// NewTable returns a table that will refuse to hand out more than
// capacity live FCBs at once, modelling the fixed-size file table a
// real kernel backs FCB_reserve with.
func NewTable(capacity int) *Table {
	return &Table{cap: capacity}
}

// Reserve allocates n fresh FCBs, or none of them if capacity would be
// exceeded, mirroring FCB_reserve's all-or-nothing contract.
func (t *Table) Reserve(n int) []*FCB {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.live+n > t.cap {
		return nil
	}
	t.live += n

	out := make([]*FCB, n)
	for i := range out {
		out[i] = &FCB{refcount: 1}
	}
	return out
}

// Release returns a slot to the table once its FCB has been fully
// decreffed. Safe to call more than once is not guaranteed; callers
// must call it exactly once per FCB obtained from Reserve whose
// refcount has reached zero.
func (t *Table) Release() {
	t.mu.Lock()
	t.live--
	t.mu.Unlock()
}

package kernel

// Read, Write and Close are the generic Fid-level entry points every
// stream kind (pipe, socket, ProcInfo) is reached through via its
// FCB's stream-operations table (§4.1). They hold the kernel mutex
// for their whole body: every stream op in this package (pipe.Pipe,
// SCB, procInfoCursor) assumes it runs under that lock rather than
// taking its own.
func (k *Kernel) Read(curproc *PCB, fid Fid, buf []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	f := fidtLookup(curproc, fid)
	if f == nil || f.StreamOps == nil || f.StreamOps.Read == nil {
		return stream_Err
	}
	return f.StreamOps.Read(f.StreamObj, buf)
}

func (k *Kernel) Write(curproc *PCB, fid Fid, buf []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	f := fidtLookup(curproc, fid)
	if f == nil || f.StreamOps == nil || f.StreamOps.Write == nil {
		return stream_Err
	}
	return f.StreamOps.Write(f.StreamObj, buf)
}

func (k *Kernel) Close(curproc *PCB, fid Fid) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	f := fidtLookup(curproc, fid)
	if f == nil {
		return stream_Err
	}
	curproc.fidt[fid] = nil

	result, freed := f.Decref()
	if freed {
		k.fcbTable.Release()
	}
	return result
}

// Package pipe implements C2: a bounded single-producer/single-
// consumer byte channel with blocking reads/writes and independent
// end closure, exactly as kernel_pipe.c's pipe_cb/pipe_read/
// pipe_write/pipe_reader_close/pipe_writer_close specify.
package pipe

import "github.com/AlexPateraki/Tiny-OS/sched"

// Sentinel return values, the same -1/0 the kernel's stream
// operations return (stream_Err/stream_EOF in package kernel),
// restated here because kernel imports pipe and not the other way.
const (
	Err = -1
	EOF = 0
)

// Pipe is a bounded circular byte buffer shared by one reader end and
// one writer end. Either end may close independently; the pipe frees
// itself (becomes eligible for GC) once both ends have closed.
//
// Pipe holds no lock of its own: every method assumes the caller
// already holds the Mutex passed to New, exactly like the kernel's
// other stream objects (SCB, procInfoCursor) documented in
// io_syscall.go. Binding hasSpace/hasData to that same mutex rather
// than a private one is what lets a blocked reader's Wait hand the
// kernel mutex back to a writer thread instead of holding the whole
// kernel hostage for as long as the pipe is empty.
type Pipe struct {
	hasSpace sched.CondVar
	hasData  sched.CondVar

	buffer             []byte
	wPos, rPos, filled int

	readerOpen, writerOpen bool
}

// New creates a pipe with the given fixed buffer size (PIPE_BUFFER_SIZE)
// and both ends open. mu is the mutex every Read/Write/Close caller
// already holds — the kernel's single mutex in production, a
// caller-managed one in standalone tests.
func New(bufferSize int, mu sched.Mutex) *Pipe {
	return &Pipe{
		hasSpace:   sched.NewCondVar(mu),
		hasData:    sched.NewCondVar(mu),
		buffer:     make([]byte, bufferSize),
		readerOpen: true,
		writerOpen: true,
	}
}

// Read implements pipe_read: returns bytes copied (1..len(buf)), EOF
// (0) once the writer has closed and the buffer is empty, or Err if
// the reader end is already closed. Caller must hold the pipe's
// mutex.
func (p *Pipe) Read(buf []byte) int {
	for p.readerOpen && p.filled == 0 {
		if p.writerOpen {
			p.hasSpace.Signal()
			p.hasData.Wait()
		} else {
			return EOF
		}
	}

	if !p.readerOpen {
		return Err
	}

	n := len(buf)
	if p.filled < n {
		n = p.filled
	}

	for i := 0; i < n; i++ {
		buf[i] = p.buffer[p.rPos]
		p.rPos = (p.rPos + 1) % len(p.buffer)
		p.filled--
	}

	p.hasSpace.Signal()
	return n
}

// Write implements pipe_write: returns bytes copied (1..len(buf)), or
// Err if either end is already closed. Caller must hold the pipe's
// mutex.
func (p *Pipe) Write(buf []byte) int {
	free := len(p.buffer) - p.filled
	for p.writerOpen && p.readerOpen && free == 0 {
		p.hasData.Signal()
		p.hasSpace.Wait()
		free = len(p.buffer) - p.filled
	}

	if !p.readerOpen || !p.writerOpen {
		return Err
	}

	n := len(buf)
	if free < n {
		n = free
	}

	for i := 0; i < n; i++ {
		p.buffer[p.wPos] = buf[i]
		p.wPos = (p.wPos + 1) % len(p.buffer)
		p.filled++
	}

	p.hasData.Signal()
	return n
}

// CloseReader implements pipe_reader_close: marks the reader end
// closed and, if the writer is already closed too, the pipe has
// nothing left referencing it. Otherwise wakes any blocked writer so
// it can observe the closure and fail. Caller must hold the pipe's
// mutex.
func (p *Pipe) CloseReader() int {
	p.readerOpen = false
	if !p.writerOpen {
		return 0
	}
	p.hasSpace.Broadcast()
	return 0
}

// CloseWriter implements pipe_writer_close: symmetric to CloseReader,
// broadcasting hasData so a blocked reader wakes to observe EOF or
// fail. Caller must hold the pipe's mutex.
func (p *Pipe) CloseWriter() int {
	p.writerOpen = false
	if !p.readerOpen {
		return 0
	}
	p.hasData.Broadcast()
	return 0
}

// ReaderOpen reports whether the reader end is still open. Used by
// the socket layer to decide EOF vs blocking without reaching into
// the pipe's internals. Caller must hold the pipe's mutex.
func (p *Pipe) ReaderOpen() bool {
	return p.readerOpen
}

// WriterOpen reports whether the writer end is still open. Caller
// must hold the pipe's mutex.
func (p *Pipe) WriterOpen() bool {
	return p.writerOpen
}

// Len reports the number of buffered, unread bytes. Caller must hold
// the pipe's mutex.
func (p *Pipe) Len() int {
	return p.filled
}

package pipe

import (
	"testing"
	"time"

	"github.com/AlexPateraki/Tiny-OS/sched"
)

// Every test here stands in for the kernel: it owns one mutex, takes
// it before calling into the pipe, and relies on Wait to hand it back
// to whichever goroutine is ready to make progress next — the same
// discipline kernel/pipe_syscall.go and kernel/socket.go follow with
// the real kernel mutex.

func TestByteOrderPreserved(t *testing.T) {
	mu := sched.NewMutex()
	p := New(4, mu)
	want := []byte("hello world")

	done := make(chan struct{})
	go func() {
		defer close(done)
		off := 0
		for off < len(want) {
			mu.Lock()
			n := p.Write(want[off:])
			mu.Unlock()
			if n <= 0 {
				t.Errorf("Write returned %d", n)
				return
			}
			off += n
		}
		mu.Lock()
		p.CloseWriter()
		mu.Unlock()
	}()

	var got []byte
	buf := make([]byte, 3)
	for {
		mu.Lock()
		n := p.Read(buf)
		mu.Unlock()
		if n == EOF {
			break
		}
		if n < 0 {
			t.Fatalf("Read returned %d", n)
		}
		got = append(got, buf[:n]...)
	}
	<-done

	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDoubleCloseIsNoop(t *testing.T) {
	mu := sched.NewMutex()
	p := New(16, mu)
	mu.Lock()
	defer mu.Unlock()
	if got := p.CloseReader(); got != 0 {
		t.Fatalf("first CloseReader = %d, want 0", got)
	}
	if got := p.CloseReader(); got != 0 {
		t.Fatalf("second CloseReader = %d, want 0", got)
	}
}

func TestReadAfterWriterClosesDrainsThenEOF(t *testing.T) {
	mu := sched.NewMutex()
	p := New(16, mu)

	mu.Lock()
	if n := p.Write([]byte("abc")); n != 3 {
		mu.Unlock()
		t.Fatalf("Write = %d, want 3", n)
	}
	p.CloseWriter()
	mu.Unlock()

	buf := make([]byte, 16)
	mu.Lock()
	n := p.Read(buf)
	mu.Unlock()
	if n != 3 || string(buf[:n]) != "abc" {
		t.Fatalf("Read = %d %q, want 3 \"abc\"", n, buf[:n])
	}

	mu.Lock()
	n = p.Read(buf)
	mu.Unlock()
	if n != EOF {
		t.Fatalf("second Read = %d, want EOF", n)
	}
}

func TestWriteBlocksUntilReaderDrains(t *testing.T) {
	mu := sched.NewMutex()
	p := New(2, mu)

	// Fill the buffer first so the goroutine's Write finds no free
	// space and has to wait for the Read below.
	mu.Lock()
	if n := p.Write([]byte("ab")); n != 2 {
		mu.Unlock()
		t.Fatalf("prefill Write = %d, want 2", n)
	}
	mu.Unlock()

	result := make(chan int, 1)
	go func() {
		mu.Lock()
		n := p.Write([]byte("cd"))
		mu.Unlock()
		result <- n
	}()

	time.Sleep(20 * time.Millisecond)
	buf := make([]byte, 2)
	mu.Lock()
	n := p.Read(buf)
	mu.Unlock()
	if n != 2 {
		t.Fatalf("Read = %d, want 2", n)
	}

	select {
	case n := <-result:
		if n <= 0 {
			t.Fatalf("Write returned %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Write never unblocked after reader drained space")
	}
}

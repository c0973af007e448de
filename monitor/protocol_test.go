package monitor

import (
	"bytes"
	"testing"

	"github.com/AlexPateraki/Tiny-OS/kernel"
)

func TestSnapshotRoundTrip(t *testing.T) {
	want := []kernel.ProcInfo{
		{Pid: 0, PPid: -1, Alive: true, ThreadCount: 0, ArgsLen: 0, Args: nil},
		{Pid: 1, PPid: -1, Alive: true, ThreadCount: 2, ArgsLen: 4, Args: []byte("demo")},
	}

	var buf bytes.Buffer
	if err := writeSnapshot(&buf, want); err != nil {
		t.Fatalf("writeSnapshot: %v", err)
	}

	got, err := readSnapshot(&buf)
	if err != nil {
		t.Fatalf("readSnapshot: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Pid != want[i].Pid || got[i].PPid != want[i].PPid ||
			got[i].Alive != want[i].Alive || got[i].ThreadCount != want[i].ThreadCount ||
			!bytes.Equal(got[i].Args, want[i].Args) {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadSnapshotTruncated(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{10, 0, 0, 0}) // claims 10 bytes of payload, provides none
	if _, err := readSnapshot(&buf); err == nil {
		t.Fatal("expected error reading truncated snapshot")
	}
}

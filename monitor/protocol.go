package monitor

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/AlexPateraki/Tiny-OS/kernel"
)

// cmdSnapshot is the only request a monitor stream carries today: "send
// me the current process table". The command byte leaves room for a
// future cmdWatch/cmdPipeStats without breaking the wire format.
const cmdSnapshot byte = 1

// writeSnapshot frames a []kernel.ProcInfo as a 4-byte little-endian
// length prefix followed by its JSON encoding, and writes it to w.
func writeSnapshot(w io.Writer, snapshot []kernel.ProcInfo) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "monitor: encode snapshot")
	}
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := w.Write(length[:]); err != nil {
		return errors.Wrap(err, "monitor: write snapshot length")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "monitor: write snapshot body")
	}
	return nil
}

// readSnapshot is writeSnapshot's inverse.
func readSnapshot(r io.Reader) ([]kernel.ProcInfo, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return nil, errors.Wrap(err, "monitor: read snapshot length")
	}
	n := binary.LittleEndian.Uint32(length[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "monitor: read snapshot body")
	}
	var snapshot []kernel.ProcInfo
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, errors.Wrap(err, "monitor: decode snapshot")
	}
	return snapshot, nil
}

// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package monitor

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/AlexPateraki/Tiny-OS/kernel"
)

// snmpLogger periodically appends a CSV row pairing kcp-go's transport
// counters with the kernel's own process-table size, so a long-running
// monitor server's tunnel health and the kernel it is watching can be
// graphed from the same log — the teacher's tunnel-only SnmpLogger has
// no notion of what's riding on top of the tunnel, but a monitor whose
// entire purpose is process telemetry should record its own subject
// alongside the transport that carries it.
func snmpLogger(k *kernel.Kernel, owner *kernel.PCB, path string, periodSeconds int) {
	if path == "" || periodSeconds == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(periodSeconds) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		logdir, logfile := filepath.Split(path)
		f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Println(err)
			return
		}

		processCount := 0
		aliveCount := 0
		for _, p := range k.CollectProcInfo(owner) {
			processCount++
			if p.Alive {
				aliveCount++
			}
		}

		w := csv.NewWriter(f)
		if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
			header := append([]string{"Unix", "Processes", "Alive"}, kcp.DefaultSnmp.Header()...)
			if err := w.Write(header); err != nil {
				log.Println(err)
			}
		}
		row := append([]string{
			fmt.Sprint(time.Now().Unix()),
			fmt.Sprint(processCount),
			fmt.Sprint(aliveCount),
		}, kcp.DefaultSnmp.ToSlice()...)
		if err := w.Write(row); err != nil {
			log.Println(err)
		}
		w.Flush()
		f.Close()
	}
}

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

// Command tinyos-monitor-server embeds a Kernel, keeps a small churn
// of demo processes running inside it, and serves ProcInfo snapshots
// of that kernel to tinyos-monitor-client over an encrypted tunnel.
package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/AlexPateraki/Tiny-OS/kernel"
	"github.com/AlexPateraki/Tiny-OS/monitor"
)

var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "tinyos-monitor-server"
	myApp.Usage = "serve process-table snapshots of a live TinyOS kernel"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "listen,l", Value: ":29901", Usage: "monitor listen address"},
		cli.StringFlag{Name: "key", Value: "it's a secrect", Usage: "pre-shared secret between client and server", EnvVar: "TINYOS_MONITOR_KEY"},
		cli.StringFlag{Name: "crypt", Value: "aes", Usage: "null, none, xor, salsa20, aes-128, aes-192, aes-128-gcm"},
		cli.BoolFlag{Name: "tcp", Usage: "also accept a tcpraw TCP fallback listener"},
		cli.IntFlag{Name: "mtu", Value: 1350},
		cli.IntFlag{Name: "sndwnd", Value: 128},
		cli.IntFlag{Name: "rcvwnd", Value: 512},
		cli.IntFlag{Name: "datashard,ds", Value: 10},
		cli.IntFlag{Name: "parityshard,ps", Value: 3},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy compression of the snapshot stream"},
		cli.IntFlag{Name: "smuxver", Value: 1},
		cli.IntFlag{Name: "smuxbuf", Value: 4194304},
		cli.IntFlag{Name: "streambuf", Value: 2097152},
		cli.IntFlag{Name: "keepalive", Value: 10},
		cli.StringFlag{Name: "snmplog", Value: ""},
		cli.IntFlag{Name: "snmpperiod", Value: 60},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json file, which will override the command from shell"},
	}
	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := monitor.DefaultConfig()
	cfg.Listen = c.String("listen")
	cfg.Key = c.String("key")
	cfg.Crypt = c.String("crypt")
	cfg.TCP = c.Bool("tcp")
	cfg.MTU = c.Int("mtu")
	cfg.SndWnd = c.Int("sndwnd")
	cfg.RcvWnd = c.Int("rcvwnd")
	cfg.DataShard = c.Int("datashard")
	cfg.ParityShard = c.Int("parityshard")
	cfg.NoComp = c.Bool("nocomp")
	cfg.SmuxVer = c.Int("smuxver")
	cfg.SmuxBuf = c.Int("smuxbuf")
	cfg.StreamBuf = c.Int("streambuf")
	cfg.KeepAlive = c.Int("keepalive")
	cfg.SnmpLog = c.String("snmplog")
	cfg.SnmpPeriod = c.Int("snmpperiod")

	if path := c.String("c"); path != "" {
		if err := monitor.LoadJSONConfig(&cfg, path); err != nil {
			return err
		}
	}

	log.Println("listening on:", cfg.Listen)
	log.Println("encryption:", cfg.Crypt)
	log.Println("compression:", !cfg.NoComp)
	log.Println("tcp fallback:", cfg.TCP)

	k, init := bootKernel()
	owner := k.Exec(init, nil, nil) // no task: a pure FIDT owner for the monitor's ProcInfo streams
	go churn(k, init)

	server := monitor.NewServer(k, k.GetPCB(owner), cfg)
	return server.ListenAndServe()
}

// bootKernel execs an init process that simply blocks forever, so its
// thread count never reaches zero and it never tears itself down —
// the scenarios spawned by churn run and exit as its children.
func bootKernel() (*kernel.Kernel, *kernel.PCB) {
	k := kernel.New(kernel.DefaultLimits())
	block := func(ctx *kernel.ThreadContext, args []byte) int {
		<-make(chan struct{})
		return 0
	}
	pid := k.Exec(nil, block, nil)
	return k, k.GetPCB(pid)
}

// churn keeps the process table interesting for anyone watching the
// monitor feed: every couple of seconds it execs a short-lived child
// that opens a pipe to itself, writes a handful of bytes, and exits.
func churn(k *kernel.Kernel, init *kernel.PCB) {
	task := func(ctx *kernel.ThreadContext, args []byte) int {
		r, w := ctx.Kernel.Pipe(ctx.Proc)
		ctx.Kernel.Write(ctx.Proc, w, []byte("tick"))
		ctx.Kernel.Close(ctx.Proc, w)
		buf := make([]byte, 16)
		n := ctx.Kernel.Read(ctx.Proc, r, buf)
		ctx.Kernel.Close(ctx.Proc, r)
		return n
	}
	for {
		childPid := k.Exec(init, task, nil)
		var exitval int
		k.WaitChild(init, childPid, &exitval)
		time.Sleep(2 * time.Second)
	}
}

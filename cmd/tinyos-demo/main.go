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

// Command tinyos-demo boots a Kernel and drives it through the
// lifecycle scenarios spec.md §8 describes: a pipe echoed across an
// Exec'd child and a socket handshake between two processes. It then
// prints the resulting process table.
package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/AlexPateraki/Tiny-OS/kernel"
)

// VERSION is injected by build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "tinyos-demo"
	myApp.Usage = "boot a TinyOS kernel and run its lifecycle scenarios"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{Name: "maxproc", Value: 64, Usage: "process table size"},
		cli.IntFlag{Name: "maxfileid", Value: 16, Usage: "per-process FIDT size"},
		cli.IntFlag{Name: "maxport", Value: 1023, Usage: "highest usable socket port"},
		cli.IntFlag{Name: "pipebuf", Value: 4096, Usage: "pipe buffer size in bytes"},
		cli.IntFlag{Name: "procinfoargs", Value: 128, Usage: "max args bytes carried in a ProcInfo record"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json file, overrides the flags above"},
	}
	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	limits := kernel.Limits{
		MaxProc:             c.Int("maxproc"),
		MaxFileID:           c.Int("maxfileid"),
		MaxPort:             c.Int("maxport"),
		PipeBufferSize:      c.Int("pipebuf"),
		ProcInfoMaxArgsSize: c.Int("procinfoargs"),
	}
	if path := c.String("c"); path != "" {
		if err := overrideFromJSON(&limits, path); err != nil {
			return err
		}
	}

	log.Println("maxproc:", limits.MaxProc, "maxfileid:", limits.MaxFileID, "maxport:", limits.MaxPort)
	log.Println("pipebuf:", limits.PipeBufferSize, "procinfoargs:", limits.ProcInfoMaxArgsSize)

	k := kernel.New(limits)
	init := runInit(k)

	runPipeScenario(k, init)
	runSocketScenario(k, init)

	printProcessTable(k, init)
	return nil
}

// runInit execs the init process (pid 1) with a task that just blocks,
// so it stays alive as the demo's scenarios run as its children,
// mirroring the way newTestKernel sets up the kernel package's
// own tests.
func runInit(k *kernel.Kernel) *kernel.PCB {
	block := func(ctx *kernel.ThreadContext, args []byte) int {
		<-make(chan struct{})
		return 0
	}
	if pid := k.Exec(nil, block, nil); pid != 1 {
		log.Fatalf("init Exec returned pid %d, want 1", pid)
	}
	return k.GetPCB(1)
}

func runPipeScenario(k *kernel.Kernel, init *kernel.PCB) {
	readFid, writeFid := k.Pipe(init)
	if readFid == kernel.NOFILE {
		color.Red("demo: pipe scenario: Pipe failed")
		return
	}

	child := func(ctx *kernel.ThreadContext, args []byte) int {
		ctx.Kernel.Close(ctx.Proc, writeFid)
		total := 0
		buf := make([]byte, 64)
		for {
			n := ctx.Kernel.Read(ctx.Proc, readFid, buf)
			if n <= 0 {
				break
			}
			total += n
		}
		return total
	}
	childPid := k.Exec(init, child, nil)
	k.Write(init, writeFid, []byte("hello from tinyos-demo"))
	k.Close(init, writeFid)

	var exitval int
	k.WaitChild(init, childPid, &exitval)
	color.Green("demo: pipe scenario: child %d echoed %d bytes", childPid, exitval)
}

func runSocketScenario(k *kernel.Kernel, init *kernel.PCB) {
	const port kernel.Port = 7
	listening := make(chan struct{})

	server := func(ctx *kernel.ThreadContext, args []byte) int {
		lsock := ctx.Kernel.Socket(ctx.Proc, port)
		if ctx.Kernel.Listen(ctx.Proc, lsock) != 0 {
			return -1
		}
		close(listening)
		sfid := ctx.Kernel.Accept(ctx.Proc, lsock)
		if sfid == kernel.NOFILE {
			return -1
		}
		ctx.Kernel.Write(ctx.Proc, sfid, []byte("pong"))
		return 0
	}
	serverPid := k.Exec(init, server, nil)

	client := func(ctx *kernel.ThreadContext, args []byte) int {
		csock := ctx.Kernel.Socket(ctx.Proc, kernel.NOPORT)
		<-listening
		if ctx.Kernel.Connect(ctx.Proc, csock, port, 1000) != 0 {
			return -1
		}
		buf := make([]byte, 4)
		return ctx.Kernel.Read(ctx.Proc, csock, buf)
	}
	clientPid := k.Exec(init, client, nil)

	var sv, cv int
	k.WaitChild(init, serverPid, &sv)
	k.WaitChild(init, clientPid, &cv)
	color.Green("demo: socket scenario: server exit=%d client read=%d bytes", sv, cv)
}

func printProcessTable(k *kernel.Kernel, init *kernel.PCB) {
	snapshot := k.CollectProcInfo(init)
	log.Println("process table:")
	for _, p := range snapshot {
		log.Printf("  pid=%-3d ppid=%-3d alive=%-5v threads=%-2d args=%q",
			p.Pid, p.PPid, p.Alive, p.ThreadCount, p.Args)
	}
}

func overrideFromJSON(limits *kernel.Limits, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(limits)
}

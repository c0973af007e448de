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

// Command tinyos-monitor-client dials a tinyos-monitor-server and
// prints its process table once, or repeatedly with -watch.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/AlexPateraki/Tiny-OS/monitor"
)

var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "tinyos-monitor-client"
	myApp.Usage = "watch a TinyOS kernel's process table over the monitor tunnel"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "remoteaddr,r", Value: "127.0.0.1:29901", Usage: "monitor server address"},
		cli.StringFlag{Name: "key", Value: "it's a secrect", Usage: "pre-shared secret between client and server", EnvVar: "TINYOS_MONITOR_KEY"},
		cli.StringFlag{Name: "crypt", Value: "aes"},
		cli.BoolFlag{Name: "nocomp", Usage: "disable snappy compression of the snapshot stream"},
		cli.IntFlag{Name: "mtu", Value: 1350},
		cli.IntFlag{Name: "sndwnd", Value: 128},
		cli.IntFlag{Name: "rcvwnd", Value: 512},
		cli.IntFlag{Name: "datashard,ds", Value: 10},
		cli.IntFlag{Name: "parityshard,ps", Value: 3},
		cli.IntFlag{Name: "smuxver", Value: 1},
		cli.BoolFlag{Name: "watch", Usage: "keep polling instead of fetching once"},
		cli.IntFlag{Name: "periodms", Value: 1000, Usage: "polling period in milliseconds when -watch is set"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config from json file, which will override the command from shell"},
	}
	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := monitor.DefaultConfig()
	cfg.RemoteAddr = c.String("remoteaddr")
	cfg.Key = c.String("key")
	cfg.Crypt = c.String("crypt")
	cfg.NoComp = c.Bool("nocomp")
	cfg.MTU = c.Int("mtu")
	cfg.SndWnd = c.Int("sndwnd")
	cfg.RcvWnd = c.Int("rcvwnd")
	cfg.DataShard = c.Int("datashard")
	cfg.ParityShard = c.Int("parityshard")
	cfg.SmuxVer = c.Int("smuxver")
	cfg.PeriodMS = c.Int("periodms")

	if path := c.String("c"); path != "" {
		if err := monitor.LoadJSONConfig(&cfg, path); err != nil {
			return err
		}
	}

	log.Println("connecting to:", cfg.RemoteAddr)
	client, err := monitor.Dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	color.Green("connected to %s", cfg.RemoteAddr)

	if !c.Bool("watch") {
		return fetchAndPrint(client)
	}

	period := time.Duration(cfg.PeriodMS) * time.Millisecond
	for {
		if err := fetchAndPrint(client); err != nil {
			color.Red("fetch failed: %v", err)
		}
		time.Sleep(period)
	}
}

func fetchAndPrint(client *monitor.Client) error {
	snapshot, err := client.FetchSnapshot()
	if err != nil {
		return err
	}
	fmt.Printf("-- %d processes --\n", len(snapshot))
	for _, p := range snapshot {
		state := color.GreenString("alive")
		if !p.Alive {
			state = color.RedString("zombie")
		}
		fmt.Printf("pid=%-3d ppid=%-3d %s threads=%-2d args=%q\n",
			p.Pid, p.PPid, state, p.ThreadCount, p.Args)
	}
	return nil
}

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

// Package monitor is a read-only telemetry tunnel for a running
// kernel.Kernel: a server embeds a Kernel and serves ProcInfo
// snapshots to any client that dials in over an encrypted, compressed,
// multiplexed KCP session. It never mutates kernel state.
package monitor

import (
	"encoding/json"
	"os"
)

// Config is shared between the monitor server and client; fields only
// one side uses are simply ignored by the other, matching the
// teacher's single-struct-for-both-binaries convention.
type Config struct {
	Listen     string `json:"listen"`
	RemoteAddr string `json:"remoteaddr"`
	Key        string `json:"key"`
	Crypt      string `json:"crypt"`
	// Ciphers, when non-empty, restricts Crypt to this allow-list
	// instead of every cipher selectBlockCrypt knows how to build —
	// e.g. a fleet-wide config that pins every monitor deployment to
	// "aes-128-gcm" and rejects anything else at startup.
	Ciphers []string `json:"ciphers"`
	TCP     bool     `json:"tcp"`

	MTU        int `json:"mtu"`
	SndWnd     int `json:"sndwnd"`
	RcvWnd     int `json:"rcvwnd"`
	DataShard  int `json:"datashard"`
	ParityShard int `json:"parityshard"`
	DSCP       int `json:"dscp"`

	NoComp     bool `json:"nocomp"`
	AckNodelay bool `json:"acknodelay"`
	NoDelay    int  `json:"nodelay"`
	Interval   int  `json:"interval"`
	Resend     int  `json:"resend"`
	NoCongestion int `json:"nc"`

	SmuxVer          int `json:"smuxver"`
	SmuxBuf          int `json:"smuxbuf"`
	StreamBuf        int `json:"streambuf"`
	FrameSize        int `json:"framesize"`
	KeepAlive        int `json:"keepalive"`

	SnmpLog    string `json:"snmplog"`
	SnmpPeriod int    `json:"snmpperiod"`

	PeriodMS int `json:"periodms"` // client polling period for watch mode
}

// DefaultConfig mirrors the teacher's "fast" mode defaults.
func DefaultConfig() Config {
	return Config{
		Listen:      ":29901",
		RemoteAddr:  "127.0.0.1:29901",
		Key:         "it's a secrect",
		Crypt:       "aes",
		MTU:         1350,
		SndWnd:      128,
		RcvWnd:      512,
		DataShard:   10,
		ParityShard: 3,
		NoDelay:     0,
		Interval:    40,
		Resend:      2,
		SmuxVer:     1,
		SmuxBuf:     4194304,
		StreamBuf:   2097152,
		FrameSize:   4096,
		KeepAlive:   10,
		PeriodMS:    1000,
	}
}

// LoadJSONConfig decodes path's JSON content into cfg, overriding
// whatever fields it sets (matching the teacher's "config from json
// file, which will override the command from shell" convention) and
// leaving the rest of cfg untouched.
func LoadJSONConfig(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cfg)
}

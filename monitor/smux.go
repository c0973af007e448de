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
	"time"

	"github.com/xtaci/smux"
)

// buildSmuxConfig constructs and verifies a smux.Config from the
// monitor's own Config, one KCP session carrying one logical stream
// per snapshot fetch (the one-shot request and its snapshot reply).
func buildSmuxConfig(cfg Config) (*smux.Config, error) {
	c := smux.DefaultConfig()
	c.Version = cfg.SmuxVer
	c.MaxReceiveBuffer = cfg.SmuxBuf
	c.MaxStreamBuffer = cfg.StreamBuf
	if cfg.FrameSize > 0 {
		c.MaxFrameSize = cfg.FrameSize
	}
	c.KeepAliveInterval = time.Duration(cfg.KeepAlive) * time.Second
	return c, smux.VerifyConfig(c)
}

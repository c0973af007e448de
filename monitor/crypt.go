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
	"github.com/pkg/errors"
	kcp "github.com/xtaci/kcp-go/v5"
)

// cryptMethod maps a cipher name to its constructor and required key size.
type cryptMethod struct {
	keySize int
	build   func(key []byte) (kcp.BlockCrypt, error)
}

// cryptMethods is the full catalog this build knows how to construct.
// It intentionally omits the teacher's VPN-grade ciphers with no
// telemetry use (3des/cast5/twofish/tea/xtea/sm4/blowfish): a
// read-only process snapshot has no need for them, and Config.Ciphers
// (below) is how an operator narrows the catalog further still.
var cryptMethods = map[string]cryptMethod{
	"null":        {0, func(key []byte) (kcp.BlockCrypt, error) { return nil, nil }},
	"none":        {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewNoneBlockCrypt(key) }},
	"xor":         {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewSimpleXORBlockCrypt(key) }},
	"salsa20":     {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewSalsa20BlockCrypt(key) }},
	"aes":         {0, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewAESBlockCrypt(key) }},
	"aes-128":     {16, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewAESBlockCrypt(key) }},
	"aes-192":     {24, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewAESBlockCrypt(key) }},
	"aes-128-gcm": {16, func(key []byte) (kcp.BlockCrypt, error) { return kcp.NewAESGCMCrypt(key) }},
}

// allowedCiphers resolves the set of cipher names a cfg is permitted
// to select from: cfg.Ciphers when the operator set one (a telemetry
// deployment can lock a fleet down to, say, just "aes-128-gcm"), or
// every name cryptMethods knows about otherwise.
func allowedCiphers(cfg Config) map[string]bool {
	allowed := make(map[string]bool)
	if len(cfg.Ciphers) == 0 {
		for name := range cryptMethods {
			allowed[name] = true
		}
		return allowed
	}
	for _, name := range cfg.Ciphers {
		allowed[name] = true
	}
	return allowed
}

// selectBlockCrypt translates cfg.Crypt into a kcp.BlockCrypt keyed by
// pass (the session key pbkdf2 derives from the caller's passphrase
// and the package salt). Unlike the teacher's SelectBlockCrypt, which
// silently falls back to AES on any unknown name or cipher-
// construction failure, a monitor tunnel fails closed: a misconfigured
// -crypt flag should surface as a startup error an operator notices,
// not a quiet downgrade of a telemetry channel's encryption that
// nobody watching the process table would ever see happen.
func selectBlockCrypt(cfg Config, pass []byte) (kcp.BlockCrypt, error) {
	allowed := allowedCiphers(cfg)
	if !allowed[cfg.Crypt] {
		return nil, errors.Errorf("monitor: cipher %q is not in the configured allow-list", cfg.Crypt)
	}
	m, ok := cryptMethods[cfg.Crypt]
	if !ok {
		return nil, errors.Errorf("monitor: unknown cipher %q", cfg.Crypt)
	}

	key := pass
	if m.keySize > 0 && len(key) >= m.keySize {
		key = key[:m.keySize]
	}
	block, err := m.build(key)
	if err != nil {
		return nil, errors.Wrapf(err, "monitor: construct %s cipher", cfg.Crypt)
	}
	return block, nil
}

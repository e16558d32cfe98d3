// Package digest selects a hash algorithm by name and produces fixed-size
// block digests. Both sides of a session pick the algorithm independently,
// so the names follow the common hashlib spelling ("sha256", "blake2b", ...).
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"

	"github.com/foxhunt72/bscp/internal/common"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/md4"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// Algorithm is the hashing capability the protocol needs.
type Algorithm interface {
	// Name is the wire name sent in the handshake.
	Name() string
	// Size is the fixed digest length in bytes.
	Size() int
	// Sum digests a whole block.
	Sum(b []byte) []byte
	// New returns a streaming accumulator for whole-file digests.
	New() hash.Hash
}

type algorithm struct {
	name string
	size int
	ctor func() hash.Hash
}

func (a *algorithm) Name() string   { return a.name }
func (a *algorithm) Size() int      { return a.size }
func (a *algorithm) New() hash.Hash { return a.ctor() }

func (a *algorithm) Sum(b []byte) []byte {
	h := a.ctor()
	h.Write(b)
	return h.Sum(nil)
}

func mustKeyless(ctor func([]byte) (hash.Hash, error)) func() hash.Hash {
	return func() hash.Hash {
		h, err := ctor(nil)
		if err != nil {
			panic(err)
		}
		return h
	}
}

var registry = map[string]func() hash.Hash{
	"md4":        md4.New,
	"md5":        md5.New,
	"sha1":       sha1.New,
	"sha224":     sha256.New224,
	"sha256":     sha256.New,
	"sha384":     sha512.New384,
	"sha512":     sha512.New,
	"sha512_224": sha512.New512_224,
	"sha512_256": sha512.New512_256,
	"sha3_224":   sha3.New224,
	"sha3_256":   sha3.New256,
	"sha3_384":   sha3.New384,
	"sha3_512":   sha3.New512,
	"blake2b":    mustKeyless(blake2b.New512),
	"blake2s":    mustKeyless(blake2s.New256),
	"ripemd160":  ripemd160.New,
}

// Lookup returns the algorithm registered under name. Unknown names fail
// with common.ErrUnsupportedHash, which is also a configuration error.
func Lookup(name string) (Algorithm, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", common.ErrConfiguration, common.ErrUnsupportedHash, name)
	}
	return &algorithm{name: name, size: ctor().Size(), ctor: ctor}, nil
}

// Names lists the supported algorithm names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package digest

import (
	"bytes"
	"encoding/hex"
)

// Vector holds one digest per block, indexed by block index. A nil entry
// means the remote content of that block is unknown and never matches.
type Vector [][]byte

// NewUnknownVector returns a vector of n unknown digests.
func NewUnknownVector(n uint64) Vector {
	return make(Vector, n)
}

// Matches reports whether entry i is known and equal to d.
func (v Vector) Matches(i uint64, d []byte) bool {
	if i >= uint64(len(v)) || v[i] == nil {
		return false
	}
	return bytes.Equal(v[i], d)
}

// Set stores a copy of d at index i. A nil d marks the entry unknown.
func (v Vector) Set(i uint64, d []byte) {
	v[i] = append([]byte(nil), d...)
}

// Hex renders the vector for debug dumps; unknown entries print as "-".
func (v Vector) Hex() []string {
	out := make([]string, len(v))
	for i, d := range v {
		if d == nil {
			out[i] = "-"
			continue
		}
		out[i] = hex.EncodeToString(d)
	}
	return out
}

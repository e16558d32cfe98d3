package digest

import (
	"encoding/hex"
	"testing"

	"github.com/foxhunt72/bscp/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_KnownSizes(t *testing.T) {
	tests := map[string]int{
		"md5":       16,
		"sha1":      20,
		"sha256":    32,
		"sha512":    64,
		"sha3_256":  32,
		"blake2b":   64,
		"blake2s":   32,
		"ripemd160": 20,
		"md4":       16,
	}

	for name, size := range tests {
		alg, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, alg.Name())
		assert.Equal(t, size, alg.Size(), name)
		assert.Len(t, alg.Sum([]byte("block")), size, name)
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("crc32")
	require.ErrorIs(t, err, common.ErrUnsupportedHash)
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestSum_SHA256KnownAnswer(t *testing.T) {
	alg, err := Lookup("sha256")
	require.NoError(t, err)

	got := hex.EncodeToString(alg.Sum([]byte("abc")))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestNew_StreamingMatchesOneShot(t *testing.T) {
	alg, err := Lookup("blake2b")
	require.NoError(t, err)

	acc := alg.New()
	acc.Write([]byte("hello "))
	acc.Write([]byte("world"))

	assert.Equal(t, alg.Sum([]byte("hello world")), acc.Sum(nil))
}

func TestNames_SortedAndComplete(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "sha256")
	assert.IsNonDecreasing(t, names)
}

func TestVector_MatchesAndUnknown(t *testing.T) {
	v := NewUnknownVector(3)
	d := []byte{1, 2, 3}

	assert.False(t, v.Matches(0, d), "unknown never matches")
	v.Set(0, d)
	assert.True(t, v.Matches(0, d))
	assert.False(t, v.Matches(1, d))
	assert.False(t, v.Matches(10, d), "out of range never matches")

	d[0] = 9
	assert.False(t, v.Matches(0, d), "Set must copy")
}

func TestVector_Hex(t *testing.T) {
	v := Vector{{0xab}, nil}
	assert.Equal(t, []string{"ab", "-"}, v.Hex())

	v.Set(0, nil)
	assert.Equal(t, []string{"-", "-"}, v.Hex(), "setting nil forgets the entry")
}

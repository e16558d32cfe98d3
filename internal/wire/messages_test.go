package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/foxhunt72/bscp/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_MarshalBinary_Layout(t *testing.T) {
	h := Header{
		Size:            150000,
		BlockSize:       65536,
		Filename:        "/dev/sdb",
		HashName:        "sha256",
		SkipDigest:      true,
		SkipFinalDigest: false,
	}

	b, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, HeaderSize+len("/dev/sdb")+len("sha256"))

	assert.Equal(t, uint64(150000), binary.LittleEndian.Uint64(b[0:]))
	assert.Equal(t, uint64(65536), binary.LittleEndian.Uint64(b[8:]))
	assert.Equal(t, uint64(8), binary.LittleEndian.Uint64(b[16:]))
	assert.Equal(t, uint64(6), binary.LittleEndian.Uint64(b[24:]))
	assert.Equal(t, byte(1), b[32])
	assert.Equal(t, byte(0), b[33])
	assert.Equal(t, "/dev/sdbsha256", string(b[HeaderSize:]))
}

func TestConn_HeaderRoundTrip(t *testing.T) {
	var pipe bytes.Buffer
	w := NewConn(nil, &pipe)
	want := Header{Size: 1, BlockSize: 4096, Filename: "dïsk.img", HashName: "blake2b", SkipFinalDigest: true}
	require.NoError(t, w.WriteHeader(want))

	r := NewConn(&pipe, nil)
	got, err := r.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, w.BytesOut(), r.BytesIn())
}

func TestConn_ReadHeader_RejectsHugeNames(t *testing.T) {
	var fixed [HeaderSize]byte
	binary.LittleEndian.PutUint64(fixed[8:], 4096)
	binary.LittleEndian.PutUint64(fixed[16:], MaxNameLen+1)

	_, err := NewConn(bytes.NewReader(fixed[:]), nil).ReadHeader()
	require.ErrorIs(t, err, common.ErrProtocol)
}

func TestConn_ReadHeader_RejectsZeroBlockSize(t *testing.T) {
	var fixed [HeaderSize]byte
	_, err := NewConn(bytes.NewReader(fixed[:]), nil).ReadHeader()
	require.ErrorIs(t, err, common.ErrProtocol)
}

func TestConn_ReadHeader_Truncated(t *testing.T) {
	_, err := NewConn(bytes.NewReader([]byte{1, 2, 3}), nil).ReadHeader()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConn_ReadGo(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want bool
	}{
		{name: "token", in: []byte("go"), want: true},
		{name: "wrong token", in: []byte("no"), want: false},
		{name: "closed stream", in: nil, want: false},
		{name: "short stream", in: []byte("g"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := NewConn(bytes.NewReader(tt.in), nil).ReadGo()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestConn_BlockFrames(t *testing.T) {
	var pipe bytes.Buffer
	w := NewConn(nil, &pipe)
	require.NoError(t, w.WriteBlock(65536, []byte("abc")))
	assert.Equal(t, uint64(11), w.BytesOut())

	r := NewConn(&pipe, nil)
	pos, ok, err := r.ReadBlockPosition()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(65536), pos)

	data := make([]byte, 3)
	require.NoError(t, r.ReadBlockData(data))
	assert.Equal(t, "abc", string(data))

	_, ok, err = r.ReadBlockPosition()
	require.NoError(t, err)
	assert.False(t, ok, "clean end of stream")
}

func TestConn_WriteStop(t *testing.T) {
	var pipe bytes.Buffer
	require.NoError(t, NewConn(nil, &pipe).WriteStop())

	pos, ok, err := NewConn(&pipe, nil).ReadBlockPosition()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(StopPosition), pos)
}

func TestConn_ReadBlockPosition_Truncated(t *testing.T) {
	_, _, err := NewConn(bytes.NewReader([]byte{1, 2}), nil).ReadBlockPosition()
	require.ErrorIs(t, err, common.ErrProtocol)
}

func TestConn_ReadBlockData_Truncated(t *testing.T) {
	err := NewConn(bytes.NewReader([]byte{1}), nil).ReadBlockData(make([]byte, 4))
	require.ErrorIs(t, err, common.ErrProtocol)
}

func TestConn_FlushBufferedWriter(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	c := NewConn(nil, bw)

	require.NoError(t, c.WriteUint64(42))
	assert.Zero(t, out.Len())
	require.NoError(t, c.Flush())
	assert.Equal(t, 8, out.Len())

	r := NewConn(&out, nil)
	v, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}

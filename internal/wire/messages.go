package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/foxhunt72/bscp/internal/common"
)

// HeaderSize is the fixed part of the handshake record:
// size, blockSize, filenameLen, hashNameLen (u64 each) and two bool bytes.
const HeaderSize = 8 + 8 + 8 + 8 + 1 + 1

// MaxNameLen bounds the variable parts of the header so a corrupt stream
// cannot make the peer allocate arbitrary memory.
const MaxNameLen = 1 << 16

// GoToken is the continuation token the driver sends after a successful
// sanity check. Anything else makes the peer leave without touching the file.
var GoToken = [2]byte{'g', 'o'}

// StopPosition takes the place of a block position to end the transfer
// early. The peer applies what it already received and skips the final
// digest.
const StopPosition = math.MaxUint64

// Header is sent driver -> peer exactly once.
type Header struct {
	Size            uint64
	BlockSize       uint64
	Filename        string
	HashName        string
	SkipDigest      bool
	SkipFinalDigest bool
}

func putBool(b []byte, v bool) {
	if v {
		b[0] = 1
		return
	}
	b[0] = 0
}

// MarshalBinary encodes the fixed record followed by the filename and hash
// name bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize, HeaderSize+len(h.Filename)+len(h.HashName))
	binary.LittleEndian.PutUint64(buf[0:], h.Size)
	binary.LittleEndian.PutUint64(buf[8:], h.BlockSize)
	binary.LittleEndian.PutUint64(buf[16:], uint64(len(h.Filename)))
	binary.LittleEndian.PutUint64(buf[24:], uint64(len(h.HashName)))
	putBool(buf[32:], h.SkipDigest)
	putBool(buf[33:], h.SkipFinalDigest)
	buf = append(buf, h.Filename...)
	buf = append(buf, h.HashName...)
	return buf, nil
}

// WriteHeader sends h as a single write.
func (c *Conn) WriteHeader(h Header) error {
	b, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = c.Write(b)
	return err
}

// ReadHeader blocks until the full header has been received.
func (c *Conn) ReadHeader() (Header, error) {
	var fixed [HeaderSize]byte
	if _, err := io.ReadFull(c, fixed[:]); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}

	h := Header{
		Size:            binary.LittleEndian.Uint64(fixed[0:]),
		BlockSize:       binary.LittleEndian.Uint64(fixed[8:]),
		SkipDigest:      fixed[32] != 0,
		SkipFinalDigest: fixed[33] != 0,
	}
	filenameLen := binary.LittleEndian.Uint64(fixed[16:])
	hashNameLen := binary.LittleEndian.Uint64(fixed[24:])

	if filenameLen > MaxNameLen || hashNameLen > MaxNameLen {
		return Header{}, fmt.Errorf("%w: header name lengths %d/%d", common.ErrProtocol, filenameLen, hashNameLen)
	}
	if h.BlockSize == 0 {
		return Header{}, fmt.Errorf("%w: zero block size", common.ErrProtocol)
	}

	filename, err := c.ReadFull(int(filenameLen))
	if err != nil {
		return Header{}, fmt.Errorf("read filename: %w", err)
	}
	hashName, err := c.ReadFull(int(hashNameLen))
	if err != nil {
		return Header{}, fmt.Errorf("read hash name: %w", err)
	}

	h.Filename = string(filename)
	h.HashName = string(hashName)
	return h, nil
}

func (c *Conn) WriteGo() error {
	_, err := c.Write(GoToken[:])
	return err
}

// ReadGo reports whether the go token arrived. A closed or short stream is
// a refusal, not an error.
func (c *Conn) ReadGo() (bool, error) {
	var token [2]byte
	if _, err := io.ReadFull(c, token[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return token == GoToken, nil
}

// WriteBlock sends one position-tagged block. data must already be sized to
// the true block length.
func (c *Conn) WriteBlock(position uint64, data []byte) error {
	if err := c.WriteUint64(position); err != nil {
		return err
	}
	_, err := c.Write(data)
	return err
}

// WriteStop sends the early end-of-transfer marker.
func (c *Conn) WriteStop() error {
	return c.WriteUint64(StopPosition)
}

// ReadBlockPosition reads the position of the next block. ok is false on a
// clean end of stream (zero bytes before the position field).
func (c *Conn) ReadBlockPosition() (position uint64, ok bool, err error) {
	var buf [8]byte
	n, err := io.ReadFull(c, buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: truncated block position: %w", common.ErrProtocol, err)
	}
	return binary.LittleEndian.Uint64(buf[:]), true, nil
}

// ReadBlockData reads exactly len(dst) payload bytes.
func (c *Conn) ReadBlockData(dst []byte) error {
	if _, err := io.ReadFull(c, dst); err != nil {
		return fmt.Errorf("%w: truncated block payload: %w", common.ErrProtocol, err)
	}
	return nil
}

// ReadDigest reads one fixed-width digest.
func (c *Conn) ReadDigest(size int) ([]byte, error) {
	return c.ReadFull(size)
}

// WriteDigest writes one digest with no framing.
func (c *Conn) WriteDigest(d []byte) error {
	_, err := c.Write(d)
	return err
}

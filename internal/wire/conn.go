// Package wire implements the bscp byte protocol. Every integer is a
// little-endian fixed-width value; there is no framing beyond what each
// message defines, so both sides must agree on every length up front.
package wire

import (
	"encoding/binary"
	"io"
	"sync/atomic"
)

// Conn wraps the two halves of a duplex pipe and counts the bytes that
// cross it in each direction.
type Conn struct {
	Reader io.Reader
	Writer io.Writer

	in  atomic.Uint64
	out atomic.Uint64
}

func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{Reader: r, Writer: w}
}

// BytesIn is the number of bytes read so far.
func (c *Conn) BytesIn() uint64 { return c.in.Load() }

// BytesOut is the number of bytes written so far.
func (c *Conn) BytesOut() uint64 { return c.out.Load() }

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Reader.Read(p)
	c.in.Add(uint64(n))
	return n, err
}

func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	c.out.Add(uint64(n))
	return n, err
}

// ReadFull reads exactly n bytes.
func (c *Conn) ReadFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Conn) ReadUint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(c, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (c *Conn) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := c.Write(buf[:])
	return err
}

// Flush flushes the underlying writer when it buffers.
func (c *Conn) Flush() error {
	if f, ok := c.Writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

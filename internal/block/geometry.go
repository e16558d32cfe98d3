// Package block describes how a file is cut into fixed, aligned blocks and
// provides the sequential scanner shared by the peer and the driver.
package block

import (
	"errors"
	"fmt"
	"io"

	"github.com/foxhunt72/bscp/internal/common"
)

// Geometry is derived once per session from the source file length.
// The final block may be shorter than BlockSize.
type Geometry struct {
	Size      uint64
	BlockSize uint64
	Count     uint64
}

func NewGeometry(size, blockSize uint64) (Geometry, error) {
	if blockSize == 0 {
		return Geometry{}, fmt.Errorf("%w: block size must be positive", common.ErrConfiguration)
	}
	return Geometry{
		Size:      size,
		BlockSize: blockSize,
		Count:     (size + blockSize - 1) / blockSize,
	}, nil
}

// Offset returns the absolute position of block i.
func (g Geometry) Offset(i uint64) uint64 {
	return i * g.BlockSize
}

// Len returns the true length of block i, the remainder for the last one.
func (g Geometry) Len(i uint64) uint64 {
	off := g.Offset(i)
	if off >= g.Size {
		return 0
	}
	if rest := g.Size - off; rest < g.BlockSize {
		return rest
	}
	return g.BlockSize
}

// LenAt returns the length of the block starting at position, or false when
// position is not a valid block start inside the file.
func (g Geometry) LenAt(position uint64) (uint64, bool) {
	if position >= g.Size || position%g.BlockSize != 0 {
		return 0, false
	}
	return g.Len(position / g.BlockSize), true
}

// Scan reads r front to back in block-sized chunks, at most g.Size bytes,
// calling fn for each chunk. A reader that ends early stops the scan after
// the last partial chunk; that is not an error. The slice passed to fn is
// reused between calls.
func Scan(r io.Reader, g Geometry, fn func(index uint64, data []byte) error) error {
	buf := make([]byte, g.BlockSize)
	remain := g.Size

	for index := uint64(0); remain > 0; index++ {
		n := g.BlockSize
		if remain < n {
			n = remain
		}

		read, err := io.ReadFull(r, buf[:n])
		if read > 0 {
			if ferr := fn(index, buf[:read]); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		remain -= n
	}

	return nil
}

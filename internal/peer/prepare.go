package peer

import (
	"fmt"
	"io"
	"os"

	"github.com/foxhunt72/bscp/internal/block"
	"github.com/foxhunt72/bscp/internal/digest"
	"github.com/foxhunt72/bscp/internal/filex"
)

// Prepare opens path for read/write. A missing path is first created as a
// sparse file of exactly size bytes with owner-only permissions.
func Prepare(path string, size uint64) (*os.File, error) {
	exists, err := filex.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !exists {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("allocate %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close %s: %w", path, err)
		}
		if err := os.Chmod(path, 0o600); err != nil {
			return nil, fmt.Errorf("chmod %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// ScanDigests digests r block by block in index order.
func ScanDigests(r io.Reader, g block.Geometry, alg digest.Algorithm, fn func(index uint64, d []byte) error) error {
	return block.Scan(r, g, func(index uint64, b []byte) error {
		return fn(index, alg.Sum(b))
	})
}

// RemoteDigests prepares path like a live session would and returns its
// per-block digest vector. It backs the remote-digest-only helper.
func RemoteDigests(path, hashName string, size, blockSize uint64) (digest.Vector, error) {
	alg, err := digest.Lookup(hashName)
	if err != nil {
		return nil, err
	}
	g, err := block.NewGeometry(size, blockSize)
	if err != nil {
		return nil, err
	}

	f, err := Prepare(path, size)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vector := make(digest.Vector, 0, g.Count)
	err = ScanDigests(f, g, alg, func(_ uint64, d []byte) error {
		vector = append(vector, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("digest scan %s: %w", path, err)
	}
	return vector, nil
}

package peer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/foxhunt72/bscp/internal/block"
	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/digest"
	"github.com/foxhunt72/bscp/internal/logging"
	"github.com/foxhunt72/bscp/internal/wire"
)

type Peer struct {
	logger logging.Logger
}

func New(logger logging.Logger) *Peer {
	return &Peer{logger: logger}
}

// Serve runs one session reading requests from r and answering on w.
// A refused go token ends the session with a nil error.
func (p *Peer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	conn := wire.NewConn(bufio.NewReader(r), bw)

	h, err := conn.ReadHeader()
	if err != nil {
		return err
	}

	alg, err := digest.Lookup(h.HashName)
	if err != nil {
		return err
	}

	log := p.logger.With("file", h.Filename, "size", h.Size, "block_size", h.BlockSize)

	if err := conn.WriteDigest(alg.Sum([]byte(h.Filename))); err != nil {
		return fmt.Errorf("write sanity digest: %w", err)
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("write sanity digest: %w", err)
	}

	ok, err := conn.ReadGo()
	if err != nil {
		return fmt.Errorf("read go token: %w", err)
	}
	if !ok {
		log.Info(ctx, "no go token, leaving destination untouched")
		return nil
	}

	g, err := block.NewGeometry(h.Size, h.BlockSize)
	if err != nil {
		return err
	}

	f, err := Prepare(h.Filename, h.Size)
	if err != nil {
		return err
	}
	defer f.Close()

	current, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek %s: %w", h.Filename, err)
	}
	if err := conn.WriteUint64(uint64(current)); err != nil {
		return fmt.Errorf("write remote size: %w", err)
	}

	if !h.SkipDigest {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seek %s: %w", h.Filename, err)
		}
		err = ScanDigests(f, g, alg, func(_ uint64, d []byte) error {
			return conn.WriteDigest(d)
		})
		if err != nil {
			return fmt.Errorf("digest scan: %w", err)
		}
		log.Debug(ctx, "digest manifest sent", "blocks", g.Count)
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("flush manifest: %w", err)
	}

	written, stopped, err := p.receive(ctx, conn, f, g)
	if err != nil {
		return err
	}
	log.Info(ctx, "blocks received", "written", written, "stopped", stopped)

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", h.Filename, err)
	}

	if h.SkipFinalDigest || stopped {
		return nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", h.Filename, err)
	}
	total := alg.New()
	err = block.Scan(f, g, func(_ uint64, b []byte) error {
		_, werr := total.Write(b)
		return werr
	})
	if err != nil {
		return fmt.Errorf("final digest: %w", err)
	}
	if err := conn.WriteDigest(total.Sum(nil)); err != nil {
		return fmt.Errorf("write final digest: %w", err)
	}
	return conn.Flush()
}

// receive applies position-tagged blocks until the driver closes its side
// or sends the stop marker. stopped reports the latter.
func (p *Peer) receive(ctx context.Context, conn *wire.Conn, f *os.File, g block.Geometry) (written uint64, stopped bool, err error) {
	buf := make([]byte, g.BlockSize)

	for {
		if err := ctx.Err(); err != nil {
			return written, false, err
		}

		position, ok, err := conn.ReadBlockPosition()
		if err != nil {
			return written, false, err
		}
		if !ok {
			return written, false, nil
		}
		if position == wire.StopPosition {
			return written, true, nil
		}

		n, valid := g.LenAt(position)
		if !valid {
			return written, false, fmt.Errorf("%w: block position %d outside of %d bytes", common.ErrProtocol, position, g.Size)
		}

		data := buf[:n]
		if err := conn.ReadBlockData(data); err != nil {
			return written, false, err
		}
		if _, err := f.WriteAt(data, int64(position)); err != nil {
			return written, false, fmt.Errorf("write block at %d: %w", position, err)
		}
		written++
	}
}

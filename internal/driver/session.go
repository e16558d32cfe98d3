package driver

import (
	"bytes"
	"context"
	"fmt"
	"hash"
	"io"
	"os"
	"time"

	"github.com/foxhunt72/bscp/internal/block"
	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/digest"
	"github.com/foxhunt72/bscp/internal/logging"
	"github.com/foxhunt72/bscp/internal/progress"
	"github.com/foxhunt72/bscp/internal/transport"
	"github.com/foxhunt72/bscp/internal/wire"
)

// session is the state of one run. It is owned by a single Run call.
type session struct {
	id       string
	opts     Options
	alg      digest.Algorithm
	geometry block.Geometry
	local    *os.File
	logger   logging.Logger

	// remote is what the driver knows of the destination, nil entries are
	// unknown and always sent.
	remote digest.Vector
	// total accumulates every local block the loop reads.
	total hash.Hash

	startIndex   uint64
	skipManifest bool
	skipFinal    bool

	proc transport.Process
	conn *wire.Conn

	written uint64
	skipped uint64
	// sent lists the blocks written to the pipe, in order. None of them is
	// confirmed until the peer exits cleanly.
	sent []uint64
}

func (s *session) stats() progress.Stats {
	st := progress.Stats{BlocksWritten: s.written, BlocksSkipped: s.skipped}
	if s.conn != nil {
		st.BytesIn = s.conn.BytesIn()
		st.BytesOut = s.conn.BytesOut()
	}
	return st
}

func (s *session) result(partial bool) *Result {
	return &Result{
		Size:       s.geometry.Size,
		Blocks:     s.geometry.Count,
		StartIndex: s.startIndex,
		Stats:      s.stats(),
		Partial:    partial,
	}
}

// handshake starts the peer, proves both sides parsed the same header and
// checks that the destination is large enough.
func (s *session) handshake(ctx context.Context, spawner transport.Spawner, remotePath string) error {
	proc, err := spawner.Spawn(ctx, s.opts.PeerCommand)
	if err != nil {
		return fmt.Errorf("%w: start peer: %w", common.ErrRemoteFailure, err)
	}
	s.proc = proc
	s.conn = wire.NewConn(proc.Stdout(), proc.Stdin())

	h := wire.Header{
		Size:            s.geometry.Size,
		BlockSize:       s.geometry.BlockSize,
		Filename:        remotePath,
		HashName:        s.alg.Name(),
		SkipDigest:      s.skipManifest || s.opts.SkipRemoteDigest,
		SkipFinalDigest: s.skipFinal,
	}
	if err := s.conn.WriteHeader(h); err != nil {
		return fmt.Errorf("%w: send header: %w", common.ErrRemoteFailure, err)
	}

	sanity, err := s.conn.ReadDigest(s.alg.Size())
	if err != nil {
		return fmt.Errorf("%w: peer did not answer the handshake: %w", common.ErrRemoteFailure, err)
	}
	if !bytes.Equal(sanity, s.alg.Sum([]byte(remotePath))) {
		return fmt.Errorf("%w: sanity digest mismatch", common.ErrRemoteHandshake)
	}

	if err := s.conn.WriteGo(); err != nil {
		return fmt.Errorf("%w: send go: %w", common.ErrRemoteFailure, err)
	}

	remoteSize, err := s.conn.ReadUint64()
	if err != nil {
		return fmt.Errorf("%w: read remote size: %w", common.ErrRemoteFailure, err)
	}
	if remoteSize < s.geometry.Size {
		return fmt.Errorf("%w: local %d, remote %d", common.ErrRemoteSizeInsufficient, s.geometry.Size, remoteSize)
	}

	s.logger.Debug(ctx, "handshake complete", "remote_size", remoteSize)
	return nil
}

// finish drains whatever the peer still writes and waits for it to exit.
func (s *session) finish() error {
	_, _ = io.Copy(io.Discard, s.conn)
	return s.proc.Wait()
}

// settle closes the peer's input and waits for it to exit. A peer still
// running after grace is killed and reported as failed.
func (s *session) settle(grace time.Duration) error {
	_ = s.proc.Stdin().Close()

	done := make(chan error, 1)
	go func() { done <- s.finish() }()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		_ = s.proc.Kill()
		<-done
		return fmt.Errorf("peer still running after %s, killed", grace)
	}
}

// forgetSent marks every block sent in this session as unknown and returns
// the index of the first one, or fallback when nothing was sent.
func (s *session) forgetSent(fallback uint64) uint64 {
	if len(s.sent) == 0 {
		return fallback
	}
	for _, idx := range s.sent {
		s.remote.Set(idx, nil)
	}
	return s.sent[0]
}

// abort ends the session without letting the peer continue.
func (s *session) abort() {
	if s.proc == nil {
		return
	}
	_ = s.proc.Stdin().Close()
	_ = s.proc.Kill()
	_, _ = io.Copy(io.Discard, s.proc.Stdout())
	_ = s.proc.Wait()
}

// Package driver runs the local side of a bscp session. It compares local
// blocks against the peer's digest manifest, streams the blocks that differ
// and keeps the resume checkpoint current while doing so.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/foxhunt72/bscp/internal/block"
	"github.com/foxhunt72/bscp/internal/checkpoint"
	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/digest"
	"github.com/foxhunt72/bscp/internal/logging"
	"github.com/foxhunt72/bscp/internal/progress"
	"github.com/foxhunt72/bscp/internal/transport"
)

// Options are the per-run settings of a session.
type Options struct {
	BlockSize             uint64
	HashName              string
	CheckpointName        string
	CheckpointInterval    time.Duration
	ProgressInterval      time.Duration
	SkipRemoteDigest      bool
	SkipRemoteFinalDigest bool
	Debug                 bool
	PeerCommand           string
}

// Result summarises a finished or partial session.
type Result struct {
	Size       uint64
	Blocks     uint64
	StartIndex uint64
	Stats      progress.Stats

	// Partial is set when the block loop stopped before the last block.
	Partial             bool
	FinalDigestVerified bool
}

// Speedup is the file size divided by the bytes that crossed the pipe.
func (r *Result) Speedup() float64 {
	return r.Stats.Speedup(r.Size)
}

type Driver struct {
	spawner transport.Spawner
	store   *checkpoint.Store
	sink    progress.Sink
	logger  logging.Logger
	now     func() time.Time
	// grace bounds the wait for the peer after an early stop.
	grace time.Duration
}

// New builds a Driver. store may be nil when no checkpoint is kept, sink
// may be nil to drop progress events.
func New(spawner transport.Spawner, store *checkpoint.Store, sink progress.Sink, logger logging.Logger) *Driver {
	if sink == nil {
		sink = progress.NopSink{}
	}
	return &Driver{spawner: spawner, store: store, sink: sink, logger: logger, now: time.Now, grace: time.Minute}
}

func fileSize(f *os.File) (uint64, error) {
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return uint64(end), nil
}

// Run synchronises localPath onto remotePath on the peer started by the
// driver's spawner. A partial transfer returns a non-nil Result together with
// an error wrapping common.ErrTransportWrite or common.ErrInterrupted, and
// also common.ErrRemoteFailure when the peer exited with an error.
func (d *Driver) Run(ctx context.Context, localPath, remotePath string, opts Options) (*Result, error) {
	alg, err := digest.Lookup(opts.HashName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	size, err := fileSize(f)
	if err != nil {
		return nil, fmt.Errorf("size of %s: %w", localPath, err)
	}

	g, err := block.NewGeometry(size, opts.BlockSize)
	if err != nil {
		return nil, err
	}

	s := &session{
		id:       uuid.NewString(),
		opts:     opts,
		alg:      alg,
		geometry: g,
		local:    f,
		total:    alg.New(),
	}
	s.logger = d.logger.With("session", s.id)

	s.logger.Info(ctx, "session started",
		"local", localPath, "remote", remotePath, "size", size,
		"block_size", g.BlockSize, "blocks", g.Count, "hash", alg.Name())

	d.resume(ctx, s)

	s.skipFinal = opts.SkipRemoteFinalDigest
	if s.startIndex > 0 && !s.skipFinal {
		s.skipFinal = true
		s.logger.Warn(ctx, "final digest disabled, resuming from a non-zero position",
			"position", g.Offset(s.startIndex), "index", s.startIndex)
	}

	if err := s.handshake(ctx, d.spawner, remotePath); err != nil {
		s.abort()
		return nil, err
	}

	if err := d.fetchManifest(ctx, s); err != nil {
		s.abort()
		return nil, err
	}
	if opts.Debug {
		s.logger.Debug(ctx, "remote digest manifest", "digests", s.remote.Hex())
	}

	// baseline before any block is sent
	d.checkpoint(ctx, s, s.startIndex)

	next, loopErr := d.transfer(ctx, s)
	if loopErr != nil {
		return d.stopEarly(ctx, s, next, loopErr)
	}

	if err := s.proc.Stdin().Close(); err != nil {
		s.logger.Debug(ctx, "close peer stdin", "error", err)
	}

	var remoteTotal []byte
	var peerErr error
	if !s.skipFinal {
		if remoteTotal, err = s.conn.ReadDigest(alg.Size()); err != nil {
			peerErr = fmt.Errorf("read final digest: %w", err)
		}
	}
	if err := s.finish(); err != nil && peerErr == nil {
		peerErr = err
	}
	if peerErr != nil {
		d.checkpoint(ctx, s, s.forgetSent(0))
		return s.result(false), fmt.Errorf("%w: %w", common.ErrRemoteFailure, peerErr)
	}

	d.checkpoint(ctx, s, 0)

	res := s.result(false)
	if s.skipFinal {
		d.done(ctx, s, res)
		return res, nil
	}

	if localTotal := s.total.Sum(nil); !bytes.Equal(remoteTotal, localTotal) {
		if s.opts.CheckpointName != "" {
			s.logger.Warn(ctx, "checkpoint no longer describes the destination, remove it or rerun with -skip-remote-digest",
				"name", s.opts.CheckpointName)
		}
		return res, fmt.Errorf("%w: local %x remote %x", common.ErrChecksumMismatch, localTotal, remoteTotal)
	}
	res.FinalDigestVerified = true

	d.done(ctx, s, res)
	return res, nil
}

// stopEarly ends a session whose block loop did not reach the last block.
// Blocks sent in this session are only credited once the peer exited
// cleanly after reading all of them.
func (d *Driver) stopEarly(ctx context.Context, s *session, next uint64, loopErr error) (*Result, error) {
	writeFailed := errors.Is(loopErr, common.ErrTransportWrite)
	if !writeFailed {
		if err := s.conn.WriteStop(); err != nil {
			s.logger.Debug(ctx, "send stop marker", "error", err)
		}
		s.logger.Info(ctx, "waiting for peer to apply received blocks")
	}

	resumeAt := next
	peerErr := s.settle(d.grace)
	if peerErr != nil {
		s.logger.Warn(ctx, "peer exited with error", "error", peerErr)
		loopErr = fmt.Errorf("%w: %w: %w", common.ErrRemoteFailure, peerErr, loopErr)
	}
	if writeFailed || peerErr != nil {
		resumeAt = s.forgetSent(next)
	}
	d.checkpoint(ctx, s, resumeAt)

	res := s.result(true)
	s.logger.Warn(ctx, "partial transfer",
		"next_index", next, "resume_index", resumeAt, "written", res.Stats.BlocksWritten,
		"skipped", res.Stats.BlocksSkipped, "error", loopErr)
	d.sink.Report(ctx, progress.Event{Phase: progress.PhaseDone, Done: res.Stats.Processed(), Total: res.Blocks, Stats: res.Stats})
	return res, loopErr
}

func (d *Driver) done(ctx context.Context, s *session, res *Result) {
	s.logger.Info(ctx, "session finished",
		"written", res.Stats.BlocksWritten, "skipped", res.Stats.BlocksSkipped,
		"bytes_in", res.Stats.BytesIn, "bytes_out", res.Stats.BytesOut,
		"final_digest_verified", res.FinalDigestVerified)
	d.sink.Report(ctx, progress.Event{Phase: progress.PhaseDone, Done: res.Stats.Processed(), Total: res.Blocks, Stats: res.Stats})
}

// resume adopts a stored checkpoint when one matches the file geometry.
func (d *Driver) resume(ctx context.Context, s *session) {
	if d.store == nil || s.opts.CheckpointName == "" || s.opts.SkipRemoteDigest {
		return
	}

	cp := d.store.Load(ctx, s.opts.CheckpointName)
	if cp == nil {
		return
	}

	g := s.geometry
	switch {
	case uint64(len(cp.Digests)) != g.Count:
		s.logger.Warn(ctx, "checkpoint ignored, block count differs",
			"checkpoint_blocks", len(cp.Digests), "blocks", g.Count)
	case cp.Index > 0 && cp.Index >= g.Count, cp.Position != g.Offset(cp.Index):
		s.logger.Warn(ctx, "checkpoint ignored, inconsistent position",
			"position", cp.Position, "index", cp.Index)
	default:
		s.remote = cp.Digests
		s.startIndex = cp.Index
		s.skipManifest = true
		s.logger.Info(ctx, "resuming from checkpoint",
			"name", s.opts.CheckpointName, "position", cp.Position, "index", cp.Index, "blocks", g.Count)
	}
}

// fetchManifest fills s.remote from the peer, or with unknown digests when
// the caller asked for every block to be sent.
func (d *Driver) fetchManifest(ctx context.Context, s *session) error {
	g := s.geometry

	switch {
	case s.opts.SkipRemoteDigest:
		s.remote = digest.NewUnknownVector(g.Count)
		return nil
	case s.skipManifest:
		return nil
	}

	s.logger.Info(ctx, "getting remote digest")

	s.remote = make(digest.Vector, g.Count)
	nextReport := d.now().Add(s.opts.ProgressInterval)

	for i := uint64(0); i < g.Count; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrInterrupted, err)
		}

		dg, err := s.conn.ReadDigest(s.alg.Size())
		if err != nil {
			return fmt.Errorf("%w: read digest %d of %d: %w", common.ErrRemoteFailure, i, g.Count, err)
		}
		s.remote[i] = dg

		if now := d.now(); !now.Before(nextReport) {
			d.sink.Report(ctx, progress.Event{Phase: progress.PhaseManifest, Done: i + 1, Total: g.Count, Stats: s.stats()})
			nextReport = now.Add(s.opts.ProgressInterval)
		}
	}

	d.sink.Report(ctx, progress.Event{Phase: progress.PhaseManifest, Done: g.Count, Total: g.Count, Stats: s.stats()})
	s.logger.Info(ctx, "remote digest ready", "blocks", g.Count)
	return nil
}

// transfer walks the blocks from the resume index. It returns the index of
// the first block not handled and, when the loop stopped early, why.
func (d *Driver) transfer(ctx context.Context, s *session) (uint64, error) {
	g := s.geometry
	s.skipped = s.startIndex

	if _, err := s.local.Seek(int64(g.Offset(s.startIndex)), io.SeekStart); err != nil {
		return s.startIndex, fmt.Errorf("seek local file: %w", err)
	}

	buf := make([]byte, g.BlockSize)
	start := d.now()
	nextReport := start.Add(s.opts.ProgressInterval)
	nextCheckpoint := start.Add(s.opts.CheckpointInterval)

	for idx := s.startIndex; idx < g.Count; idx++ {
		if err := ctx.Err(); err != nil {
			return idx, fmt.Errorf("%w: %w", common.ErrInterrupted, err)
		}

		data := buf[:g.Len(idx)]
		if _, err := io.ReadFull(s.local, data); err != nil {
			return idx, fmt.Errorf("read local block %d: %w", idx, err)
		}

		s.total.Write(data)
		local := s.alg.Sum(data)

		if s.remote.Matches(idx, local) {
			s.skipped++
		} else {
			if err := s.conn.WriteBlock(g.Offset(idx), data); err != nil {
				return idx, fmt.Errorf("%w: block %d: %w", common.ErrTransportWrite, idx, err)
			}
			s.remote.Set(idx, local)
			s.sent = append(s.sent, idx)
			s.written++
		}

		now := d.now()
		if !now.Before(nextReport) {
			d.sink.Report(ctx, progress.Event{Phase: progress.PhaseTransfer, Done: s.written + s.skipped, Total: g.Count, Stats: s.stats()})
			nextReport = now.Add(s.opts.ProgressInterval)
		}
		if !now.Before(nextCheckpoint) {
			d.checkpoint(ctx, s, idx)
			nextCheckpoint = now.Add(s.opts.CheckpointInterval)
		}
	}

	return g.Count, nil
}

// checkpoint persists the digest vector with index as the resume point.
// Failures are logged; they never stop the transfer.
func (d *Driver) checkpoint(ctx context.Context, s *session, index uint64) {
	if d.store == nil || s.opts.CheckpointName == "" {
		return
	}

	cp := &checkpoint.Checkpoint{
		Digests:  s.remote,
		Position: s.geometry.Offset(index),
		Index:    index,
	}

	// the final checkpoint is also written after an interrupt
	if err := d.store.Save(context.WithoutCancel(ctx), s.opts.CheckpointName, cp); err != nil {
		s.logger.Warn(ctx, "checkpoint save failed", "name", s.opts.CheckpointName, "error", err)
		return
	}
	s.logger.Debug(ctx, "checkpoint saved", "name", s.opts.CheckpointName, "position", cp.Position, "index", index)
}

// RemoteInfoCommand returns the command line that computes the remote digest
// manifest out of band with bscp-remote-only.
func RemoteInfoCommand(localPath, remotePath, hashName string, blockSize uint64) (string, error) {
	if _, err := digest.Lookup(hashName); err != nil {
		return "", err
	}
	if blockSize == 0 {
		return "", fmt.Errorf("%w: block size must be positive", common.ErrConfiguration)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	size, err := fileSize(f)
	if err != nil {
		return "", fmt.Errorf("size of %s: %w", localPath, err)
	}

	return fmt.Sprintf("bscp-remote-only '%s' '%s' %d %d <output_filename>", remotePath, hashName, size, blockSize), nil
}

package transport

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrPeerExited is what writes observe once an in-process peer returned.
	ErrPeerExited = errors.New("peer exited")
	ErrPeerKilled = errors.New("peer killed")
)

// ServeFunc runs one peer session over r and w.
type ServeFunc func(ctx context.Context, r io.Reader, w io.Writer) error

// InProcess runs the peer in a goroutine connected through io.Pipe. It
// serves "local:" destinations without an installed peer binary and drives
// end-to-end tests.
type InProcess struct {
	serve ServeFunc
}

func NewInProcess(serve ServeFunc) *InProcess {
	return &InProcess{serve: serve}
}

type inProcess struct {
	stdin  *io.PipeWriter
	stdout *io.PipeReader
	done   chan error
}

func (p *inProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *inProcess) Stdout() io.Reader     { return p.stdout }
func (p *inProcess) Wait() error           { return <-p.done }

// Kill breaks both pipes so the peer fails its next read or write.
func (p *inProcess) Kill() error {
	_ = p.stdout.CloseWithError(ErrPeerKilled)
	_ = p.stdin.CloseWithError(ErrPeerKilled)
	return nil
}

// Spawn starts the peer goroutine. Like a separate process the peer is not
// cancelled with ctx: it ends when its input is closed.
func (s *InProcess) Spawn(ctx context.Context, _ string) (Process, error) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	done := make(chan error, 1)

	go func() {
		err := s.serve(context.WithoutCancel(ctx), inR, outW)
		_ = outW.CloseWithError(err)
		_ = inR.CloseWithError(ErrPeerExited)
		done <- err
	}()

	return &inProcess{stdin: inW, stdout: outR, done: done}, nil
}

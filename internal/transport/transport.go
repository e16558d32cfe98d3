// Package transport starts the remote peer and exposes it as a pair of
// byte streams. The driver only depends on Spawner; which mechanism runs the
// peer (local shell, the ssh binary, a native SSH client or a goroutine) is
// chosen once per session.
package transport

import (
	"context"
	"io"
)

// Process is a running peer.
type Process interface {
	// Stdin is the driver -> peer stream. Closing it signals end of blocks.
	Stdin() io.WriteCloser
	// Stdout is the peer -> driver stream.
	Stdout() io.Reader
	// Wait blocks until the peer has exited. Read Stdout to completion first.
	Wait() error
	// Kill stops the peer without letting it finish its session.
	Kill() error
}

type Spawner interface {
	Spawn(ctx context.Context, command string) (Process, error)
}

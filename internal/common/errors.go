// Package common defines sentinel errors shared by the driver, the peer and
// the checkpoint store. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Configuration errors, detected before any transport is spawned.
	ErrConfiguration   = errors.New("configuration error")
	ErrUnsupportedHash = errors.New("unsupported hash algorithm")

	// Protocol errors.
	ErrRemoteHandshake        = errors.New("remote handshake failed")
	ErrRemoteSizeInsufficient = errors.New("remote size less than local")
	ErrRemoteFailure          = errors.New("remote peer failed")
	ErrProtocol               = errors.New("protocol violation")
	ErrChecksumMismatch       = errors.New("checksum mismatch after transfer")

	// ErrTransportWrite marks a partial transfer: the block loop stopped early
	// but a checkpoint was still persisted.
	ErrTransportWrite = errors.New("transport write failed")
	// ErrInterrupted marks a partial transfer stopped by cancellation.
	ErrInterrupted = errors.New("transfer interrupted")

	// Storage-level errors.
	ErrorNotFound = errors.New("not found")
)

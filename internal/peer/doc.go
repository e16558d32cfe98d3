// Package peer is the destination side of a bscp session.
//
// A Peer serves exactly one session over a byte pipe, normally its own
// stdin/stdout:
//
//	AWAIT_HEADER -> SANITY_SENT -> AWAIT_GO -> (ABORTED | PREPARING)
//	  -> [DIGEST_SCAN] -> RECEIVE_LOOP -> [FINAL_DIGEST] -> DONE
//
// Nothing on disk is created or modified before the go token arrives, so a
// driver can run the handshake alone to check a destination. Any I/O error on
// the destination file is returned to the caller, which exits non-zero; the
// driver observes that as a closed pipe.
//
// Prepare and ScanDigests are also used by the remote-digest-only helper.
package peer

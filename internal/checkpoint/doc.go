// Package checkpoint persists the remote digest vector together with the
// position reached, so an interrupted session can resume without fetching
// the manifest again.
//
// # Schemas
//
// Two on-disk generations exist and are tried in order on load:
//
//	<name>.v2  current: {"version":2,"digests":[...],"position":N,"index":N}
//	<name>     legacy:  [...digests...]   (position and index default to 0)
//
// Digests are base64 strings, null marks an unknown block. Save writes the
// legacy form first and the current form last, each one atomically for the
// backend in use, so a reader never prefers a half-written current file.
//
// # Backends
//
// The location given to Open selects where payloads live:
//
//	/var/lib/bscp/sdb.cp                  plain files (temp file + rename)
//	sqlite:///var/lib/bscp/state.db#sdb   SQLite table, both keys in one tx
//	postgres://user@host/db#sdb           PostgreSQL table via pgx
//	s3://bucket/prefix/sdb.cp             S3-compatible object storage
//
// A missing or unreadable checkpoint is never an error for the caller: Load
// logs a warning and reports "no prior state".
package checkpoint

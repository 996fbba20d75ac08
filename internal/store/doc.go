// Package store keeps committed pipeline stages as content-addressed
// records.
//
// Each record is an OCI archive plus a small metadata file, stored under
// the digest of the stage's full input chain. Records are immutable:
// writes stage into a temporary directory and rename into place, so a
// record either exists completely or not at all, and concurrent writers
// of one key converge on identical content.
//
// A [Store] always has a local filesystem tier and may layer a [Remote]
// S3 tier on top: lookups read through the remote on a local miss, and
// commits write through to it best-effort.
package store

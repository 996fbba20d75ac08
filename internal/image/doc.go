// Package image performs registry and archive operations on OCI images.
//
// [Pull] fetches a base image for a target platform and saves it as a tar
// archive, mapping registry failures onto [ErrNotFound] (the reference does
// not resolve) or [ErrUnreachable] (the registry cannot be reached).
// [Activate] rewrites an archive's config offline, fixing the entry
// command, environment, working directory, and labels without running a
// container. [Inspect] reads an archive's config back, which lets a built
// artifact be started without access to its original build spec.
package image

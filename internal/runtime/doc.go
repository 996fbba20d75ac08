// Package runtime manages build and run containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon and starts containers from
// OCI archives. An archive is imported into the content store, tagged with
// a deterministic content hash, unpacked for the target platform, and used
// to create a container with an overlayfs snapshot.
//
// Each [Container] wraps a running containerd task. Commands execute
// inside it either captured ([Container.Exec]) or with the caller's
// streams attached ([Container.ExecStream]), tar streams can be copied in,
// and the accumulated filesystem delta can be committed back out as a new
// OCI archive. When the container is no longer needed it should be
// destroyed to release its snapshot and task resources.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "kiln")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	ctr, err := rt.StartContainer(ctx, "image.tar", "build-1", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	result, err := ctr.Exec(ctx, "/bin/sh", "echo hello", nil, "")
//	if err != nil {
//	    return err
//	}
//
//	if err := ctr.Commit(ctx, "layer.tar"); err != nil {
//	    return err
//	}
package runtime

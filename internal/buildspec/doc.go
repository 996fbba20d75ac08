// Package buildspec loads and validates the declarative inputs of a build.
//
// A [Spec] describes one build end-to-end: the base runtime image, the
// working directory the source tree lands in, optional system toolchain
// packages, the dependency manifest, the isolation mode, and the entry
// command the image runs. Deployment variants that differ only in these
// fields share one spec type instead of diverging recipe files.
//
// A [Manifest] is the ordered list of third-party package constraints the
// dependency stage installs. The parser accepts the plain requirements
// subset and keeps the raw bytes so cache keys track the file exactly.
//
// Example usage:
//
//	spec, err := buildspec.Load("kiln.yaml")
//	if err != nil {
//	    return err
//	}
//
//	manifest, err := buildspec.LoadManifest(spec.Manifest)
//	if err != nil {
//	    return err
//	}
package buildspec

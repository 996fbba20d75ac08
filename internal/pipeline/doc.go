// Package pipeline executes the four-stage container build.
//
// A build is a straight line: base provisioning pulls the base runtime
// image, source materialization streams the project tree into it,
// dependency installation provisions the toolchain and the manifest
// packages, and entry-point activation fixes the entry command and
// execution environment into the final image config. Stage N builds only
// on stage N-1's committed archive; there is no branching and no retry.
//
// Every stage is cached under a content-addressed key chained over the
// prior stage's key and the stage's own inputs, so any upstream change
// invalidates everything downstream while an unchanged prefix of the
// pipeline is skipped entirely. The cache is an explicit store handed to
// the pipeline, not ambient state.
//
// Example usage:
//
//	p := pipeline.New(engine, cache)
//
//	result, err := p.Run(ctx, pipeline.Options{
//	    Spec:    spec,
//	    Context: ".",
//	    Output:  "dist",
//	})
//	if err != nil {
//	    return err
//	}
package pipeline

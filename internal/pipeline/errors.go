package pipeline

import "errors"

// The build failure taxonomy. Every failure is fatal: the pipeline moves to
// its failed phase, stores nothing for the failed stage or any later one,
// and performs no retries.
var (
	ErrPipeline             = errors.New("pipeline failed")
	ErrBaseImageNotFound    = errors.New("base image not found")
	ErrSourceTreeUnreadable = errors.New("source tree unreadable")
	ErrSystemPackageInstall = errors.New("system package install failed")
	ErrDependencyResolution = errors.New("dependency resolution failed")
	ErrNativeBuild          = errors.New("native build failed")
	ErrNetwork              = errors.New("network failure")

	// Runtime-side: the artifact's entry file is missing when the
	// container starts. Reserved exit code 127.
	ErrEntryPointNotFound = errors.New("entry point not found")
)

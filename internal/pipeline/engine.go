package pipeline

import (
	"context"
	"io"
)

// Output of a command executed inside a build container.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Stdout   string // Captured standard output.
	Stderr   string // Captured standard error.
}

// The container backend the pipeline builds stages with.
//
// An engine starts one build container per executed stage from the prior
// stage's archive. The production implementation wraps the containerd
// runtime; tests substitute an in-memory fake.
type Engine interface {

	// Starts a build container from an OCI archive.
	StartContainer(ctx context.Context, archive, id, platform string) (Container, error)
}

// A running build container owned by a single stage.
type Container interface {

	// Creates a directory inside the container, including parents.
	MkdirAll(ctx context.Context, path string) error

	// Extracts a tar stream into a directory inside the container.
	CopyTo(ctx context.Context, r io.Reader, destDir string) error

	// Runs a shell command inside the container. A non-zero exit code is
	// reported in the result, not as an error.
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (ExecResult, error)

	// Stops the container's task ahead of committing its filesystem.
	Stop(ctx context.Context) error

	// Commits the container's filesystem delta and writes the resulting
	// archive to dest.
	Commit(ctx context.Context, dest string) error

	// Releases the container and its snapshot. Safe to call after Stop.
	Destroy(ctx context.Context)
}

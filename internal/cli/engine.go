package cli

import (
	"context"
	"io"

	"github.com/kilnbuild/kiln/internal/pipeline"
	"github.com/kilnbuild/kiln/internal/runtime"
)

// Adapts the containerd runtime to the pipeline's engine interface.
type engine struct {
	rt *runtime.Runtime
}

func (e *engine) StartContainer(ctx context.Context, archive, id, platform string) (pipeline.Container, error) {
	ctr, err := e.rt.StartContainer(ctx, archive, id, platform)
	if err != nil {
		return nil, err
	}
	return &container{ctr: ctr}, nil
}

type container struct {
	ctr *runtime.Container
}

func (c *container) MkdirAll(ctx context.Context, path string) error {
	return c.ctr.MkdirAll(ctx, path)
}

func (c *container) CopyTo(ctx context.Context, r io.Reader, destDir string) error {
	return c.ctr.CopyTo(ctx, r, destDir)
}

func (c *container) Exec(ctx context.Context, shell, command string, env []string, workdir string) (pipeline.ExecResult, error) {
	result, err := c.ctr.Exec(ctx, shell, command, env, workdir)
	if err != nil {
		return pipeline.ExecResult{}, err
	}
	return pipeline.ExecResult{
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}, nil
}

func (c *container) Stop(ctx context.Context) error {
	return c.ctr.Stop(ctx)
}

func (c *container) Commit(ctx context.Context, dest string) error {
	return c.ctr.Commit(ctx, dest)
}

func (c *container) Destroy(ctx context.Context) {
	c.ctr.Destroy(ctx)
}

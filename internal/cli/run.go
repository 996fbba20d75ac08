package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/kilnbuild/kiln/internal/config"
	"github.com/kilnbuild/kiln/internal/errx"
	"github.com/kilnbuild/kiln/internal/image"
	"github.com/kilnbuild/kiln/internal/pipeline"
	"github.com/kilnbuild/kiln/internal/runtime"
)

// Exit code reported when the artifact's entry file is missing at start.
const exitEntryPointNotFound = 127

// Represents the 'kiln run' command.
type RunCmd struct {
	Archive  string `arg:"" optional:"" default:"dist/image.tar" help:"Path to the image archive."`
	Platform string `help:"Platform to run as. Defaults to the host." placeholder:"PLATFORM"`
}

// Executes the run command.
//
// Starts a container from the archive and runs its fixed entry command with
// the caller's stdio attached. The process exit code is propagated. When
// the archive carries an entry file label and that file is missing from
// the container, the run fails with exit code 127 before the entry command
// starts.
func (c *RunCmd) Run(ctx context.Context) error {
	cfg, err := config.Load(RootCmd.Config)
	if err != nil {
		return err
	}

	info, err := image.Inspect(c.Archive)
	if err != nil {
		return err
	}
	if len(info.Entrypoint) == 0 {
		return &ExitError{
			Code: exitEntryPointNotFound,
			Err:  errx.Wrapf(pipeline.ErrEntryPointNotFound, "archive %s has no entry command", c.Archive),
		}
	}

	rt, err := runtime.New(cfg.Containerd.Address, cfg.Containerd.Namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	platform := c.Platform
	if platform == "" {
		platform = runtime.DefaultPlatform()
	}

	id := "kiln-run-" + uuid.NewString()[:8]
	ctr, err := rt.StartContainer(ctx, c.Archive, id, platform)
	if err != nil {
		return err
	}
	defer ctr.Destroy(context.WithoutCancel(ctx))

	if err := verifyEntryFile(ctx, ctr, info.Labels); err != nil {
		return err
	}

	slog.Debug("starting entry command", "id", id, "command", info.Entrypoint)

	code, err := ctr.ExecStream(ctx, info.Entrypoint, nil, "", os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// Checks for a regular file inside a container.
//
// Implemented by [runtime.Container]; tests substitute a fake.
type fileProber interface {
	FileExists(ctx context.Context, path string) (bool, error)
}

// Verifies the labeled entry file exists inside the container.
//
// The check happens at start, not at build: the file may legitimately
// appear only after dependency installation, or the archive may have been
// built elsewhere. Archives without the label pass unchecked. A missing
// file yields the reserved exit code.
func verifyEntryFile(ctx context.Context, ctr fileProber, labels map[string]string) error {
	entryFile := labels[pipeline.LabelEntryFile]
	if entryFile == "" {
		return nil
	}

	exists, err := ctr.FileExists(ctx, entryFile)
	if err != nil {
		return err
	}
	if !exists {
		return &ExitError{
			Code: exitEntryPointNotFound,
			Err:  errx.Wrapf(pipeline.ErrEntryPointNotFound, "%s", entryFile),
		}
	}
	return nil
}

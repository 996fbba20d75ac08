package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/kilnbuild/kiln/internal/buildspec"
	"github.com/kilnbuild/kiln/internal/errx"
	"github.com/kilnbuild/kiln/internal/image"
)

// Shell used for stage commands inside build containers.
const defaultShell = "/bin/sh"

// Labels fixed into the artifact so it can be started without its spec.
const (
	LabelSpecName  = "build.kiln.dev/spec-name"
	LabelIsolation = "build.kiln.dev/isolation"
	LabelEntryFile = "build.kiln.dev/entry-file"
)

// Stage 1: pull the base image for the target platform and save it as the
// initial archive. No container runs.
func (p *Pipeline) provisionBase(ref, platform string) func(ctx context.Context, prior, dest string) error {
	return func(ctx context.Context, _, dest string) error {
		err := p.pull(ctx, ref, platform, dest)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, image.ErrNotFound):
			return errx.Wrap(ErrBaseImageNotFound, err)
		case errors.Is(err, image.ErrUnreachable):
			return errx.Wrap(ErrNetwork, err)
		default:
			return err
		}
	}
}

// Stage 2: stream the deterministic source tarball into the workdir of a
// container started from the base archive, then commit the delta.
func (p *Pipeline) materializeSource(spec *buildspec.Spec, platform, srcTar string) func(ctx context.Context, prior, dest string) error {
	return func(ctx context.Context, prior, dest string) error {
		ctr, err := p.engine.StartContainer(ctx, prior, containerID(spec.Name, platform, "source"), platform)
		if err != nil {
			return err
		}
		defer ctr.Destroy(ctx)

		if err := ctr.MkdirAll(ctx, spec.Workdir); err != nil {
			return err
		}

		f, err := os.Open(srcTar)
		if err != nil {
			return errx.Wrap(ErrSourceTreeUnreadable, err)
		}
		defer f.Close()

		if err := ctr.CopyTo(ctx, f, spec.Workdir); err != nil {
			return err
		}

		if err := ctr.Stop(ctx); err != nil {
			return err
		}
		return ctr.Commit(ctx, dest)
	}
}

// Stage 3: install the system toolchain and the manifest dependencies.
//
// With nothing to install the stage succeeds trivially and its layer is the
// prior layer unchanged; no container runs.
func (p *Pipeline) installDependencies(spec *buildspec.Spec, manifest *buildspec.Manifest, platform string, verbose bool) func(ctx context.Context, prior, dest string) error {
	return func(ctx context.Context, prior, dest string) error {
		cmds := installCommands(spec, manifest, verbose)
		if len(cmds) == 0 {
			return copyFile(prior, dest)
		}

		ctr, err := p.engine.StartContainer(ctx, prior, containerID(spec.Name, platform, "deps"), platform)
		if err != nil {
			return err
		}
		defer ctr.Destroy(ctx)

		for _, cmd := range cmds {
			slog.Debug("run", "command", cmd.line)

			result, err := ctr.Exec(ctx, defaultShell, cmd.line, nil, spec.Workdir)
			if err != nil {
				return err
			}
			if result.ExitCode != 0 {
				return cmd.classify(result.ExitCode, result.Stderr)
			}
		}

		if err := ctr.Stop(ctx); err != nil {
			return err
		}
		return ctr.Commit(ctx, dest)
	}
}

// Stage 4: fix the entry command, execution environment, working directory,
// and labels into the archive's config. An offline mutation; no container
// runs and no build-time failure classes of its own.
func (p *Pipeline) activateEntry(spec *buildspec.Spec) func(ctx context.Context, prior, dest string) error {
	return func(ctx context.Context, prior, dest string) error {
		baseEnv, err := p.configEnv(prior)
		if err != nil {
			return err
		}

		act := image.Activation{
			Reference:  spec.Name + ":latest",
			Entrypoint: spec.Entrypoint,
			Env:        executionEnv(baseEnv, spec.Isolation, spec.Env),
			WorkingDir: spec.Workdir,
			Labels: map[string]string{
				LabelSpecName:  spec.Name,
				LabelIsolation: string(spec.Isolation),
			},
		}
		if entryFile := spec.EntryFile(); entryFile != "" {
			act.Labels[LabelEntryFile] = entryFile
		}

		return p.activate(prior, dest, act)
	}
}

// A shell command of the dependency stage, with the failure class its
// stderr is mapped through.
type installCommand struct {
	line     string
	classify func(exitCode int, stderr string) error
}

// Builds the dependency stage's command sequence.
//
// The toolchain install comes first: packages needing native compilation
// fail later without it. The installer upgrade is unconditional whenever
// anything will be installed; a stale installer is a documented source of
// non-reproducible installs across base image updates. In isolated mode
// the environment is created next and its own installer upgraded, so the
// installing pip is the modern one in either mode.
func installCommands(spec *buildspec.Spec, manifest *buildspec.Manifest, verbose bool) []installCommand {
	var cmds []installCommand

	if len(spec.SystemPackages) > 0 {
		cmds = append(cmds, installCommand{
			line: "apt-get update && apt-get install -y --no-install-recommends " +
				strings.Join(spec.SystemPackages, " ") +
				" && rm -rf /var/lib/apt/lists/*",
			classify: classifySystem,
		})
	}

	if manifest.Empty() {
		return cmds
	}

	flag := "--quiet"
	if verbose {
		flag = "--verbose"
	}

	python := "python"
	cmds = append(cmds, installCommand{
		line:     fmt.Sprintf("python -m pip install --upgrade %s pip", flag),
		classify: classifyInstall,
	})

	if spec.Isolation == buildspec.IsolationIsolated {
		cmds = append(cmds,
			installCommand{
				line:     "python -m venv " + venvDir,
				classify: classifyInstall,
			},
			installCommand{
				line:     fmt.Sprintf("%s/python -m pip install --upgrade %s pip", venvBin, flag),
				classify: classifyInstall,
			},
		)
		python = venvBin + "/python"
	}

	cmds = append(cmds, installCommand{
		line:     fmt.Sprintf("%s -m pip install %s -r %s", python, flag, path.Join(spec.Workdir, spec.Manifest)),
		classify: classifyInstall,
	})

	return cmds
}

// Maps a failed toolchain install onto the taxonomy. Any apt failure,
// unresolvable name or unreachable mirror alike, is a system package
// install error.
func classifySystem(exitCode int, stderr string) error {
	return errx.Wrapf(ErrSystemPackageInstall, "exit code %d: %s", exitCode, lastLines(stderr, 3))
}

// Returns the deterministic container ID for a build stage.
//
// Deterministic IDs let a rerun reap a stale container left behind by an
// interrupted build of the same spec.
func containerID(name, platform, suffix string) string {
	return fmt.Sprintf("%s-%s-%s", name, platformSlug(platform), suffix)
}

// Converts a platform string to an ID-safe slug.
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}

package image

import (
	"log/slog"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/kilnbuild/kiln/internal/errx"
)

// Describes the runtime surface fixed into an artifact: the entry command,
// the resolved execution environment, and identifying labels.
type Activation struct {
	Reference  string            // Tag the mutated image is saved under.
	Entrypoint []string          // Entry command in exec form.
	Env        []string          // Full environment, "key=value" entries.
	WorkingDir string            // Working directory for the entry process.
	Labels     map[string]string // Labels merged into the image config.
}

// Rewrites an archive's image config and saves the result to dest.
//
// This is an offline mutation: no container runs and no layers change, only
// the config blob (and therefore the manifest) is replaced. The entrypoint
// is set in exec form and any inherited Cmd is cleared, so exactly one
// entry command is active. The environment and working directory are fixed
// as given; labels are merged over the base image's own.
func Activate(src, dest string, act Activation) error {
	img, err := tarball.ImageFromPath(src, nil)
	if err != nil {
		return errx.Wrap(ErrImage, err)
	}

	cfgFile, err := img.ConfigFile()
	if err != nil {
		return errx.Wrap(ErrImage, err)
	}

	cfg := cfgFile.DeepCopy()
	cfg.Config.Entrypoint = act.Entrypoint
	cfg.Config.Cmd = nil
	cfg.Config.Env = act.Env
	cfg.Config.WorkingDir = act.WorkingDir
	if cfg.Config.Labels == nil {
		cfg.Config.Labels = make(map[string]string, len(act.Labels))
	}
	for k, v := range act.Labels {
		cfg.Config.Labels[k] = v
	}

	mutated, err := mutate.ConfigFile(img, cfg)
	if err != nil {
		return errx.Wrap(ErrImage, err)
	}

	if err := crane.Save(mutated, act.Reference, dest); err != nil {
		return errx.Wrap(ErrImage, err)
	}

	slog.Debug("image activated", "ref", act.Reference, "entrypoint", act.Entrypoint)
	return nil
}

package image

import (
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/kilnbuild/kiln/internal/errx"
)

// The runtime-relevant slice of an archive's image config.
type Info struct {
	Entrypoint []string
	Cmd        []string
	Env        []string
	WorkingDir string
	Labels     map[string]string
}

// Reads the image config from a tar archive.
func Inspect(path string) (*Info, error) {
	img, err := tarball.ImageFromPath(path, nil)
	if err != nil {
		return nil, errx.Wrap(ErrImage, err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, errx.Wrap(ErrImage, err)
	}

	return &Info{
		Entrypoint: cfg.Config.Entrypoint,
		Cmd:        cfg.Config.Cmd,
		Env:        cfg.Config.Env,
		WorkingDir: cfg.Config.WorkingDir,
		Labels:     cfg.Config.Labels,
	}, nil
}

// Reads just the environment from an archive's image config.
func ConfigEnv(path string) ([]string, error) {
	info, err := Inspect(path)
	if err != nil {
		return nil, err
	}
	return info.Env, nil
}

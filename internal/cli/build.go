package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kilnbuild/kiln/internal"
	"github.com/kilnbuild/kiln/internal/buildspec"
	"github.com/kilnbuild/kiln/internal/config"
	"github.com/kilnbuild/kiln/internal/pipeline"
	"github.com/kilnbuild/kiln/internal/runtime"
	"github.com/kilnbuild/kiln/internal/store"
)

// Represents the 'kiln build' command.
type BuildCmd struct {
	Context  string `arg:"" optional:"" default:"." help:"Build context directory."`
	File     string `short:"f" default:"kiln.yaml" help:"Build spec file, relative to the context." placeholder:"PATH"`
	Output   string `short:"o" default:"dist" help:"Output directory for the image archive." placeholder:"DIR"`
	Platform string `help:"Target platform (os/arch). Defaults to the host." placeholder:"PLATFORM"`
	NoCache  bool   `help:"Rebuild every stage. The stage store is still populated."`
}

// Executes the build command.
//
// Loads the spec, connects to containerd and the stage store, and runs the
// pipeline. On success the path of the runnable archive is printed to
// stdout.
func (c *BuildCmd) Run(ctx context.Context) error {
	cfg, err := config.Load(RootCmd.Config)
	if err != nil {
		return err
	}

	specPath := c.File
	if !filepath.IsAbs(specPath) {
		specPath = filepath.Join(c.Context, specPath)
	}
	spec, err := buildspec.Load(specPath)
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg.Containerd.Address, cfg.Containerd.Namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	slog.Info("building", "spec", spec.Name, "context", c.Context)

	result, err := pipeline.New(&engine{rt: rt}, st).Run(ctx, pipeline.Options{
		Spec:     spec,
		Context:  c.Context,
		Output:   c.Output,
		Platform: c.Platform,
		NoCache:  c.NoCache,
		Verbose:  internal.IsVerbose(),
	})
	if err != nil {
		return err
	}

	for _, stage := range result.Stages {
		state := "built"
		if stage.Cached {
			state = "cached"
		}
		if meta, err := st.Stat(stage.Key); err == nil {
			slog.Debug("stage complete", "stage", stage.Phase, "state", state, "size", meta.Size)
		} else {
			slog.Debug("stage complete", "stage", stage.Phase, "state", state)
		}
	}

	fmt.Println(result.Artifact)
	return nil
}

// Opens the stage store, attaching the shared remote tier when one is
// configured.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	var remote *store.Remote
	if rc := cfg.Store.Remote; rc != nil {
		var err error
		remote, err = store.NewRemote(ctx, remoteConfig(*rc))
		if err != nil {
			return nil, err
		}
	}
	return store.Open(cfg.Store.Dir, remote)
}

// Converts the config file's remote section to the store's settings.
func remoteConfig(rc config.Remote) store.RemoteConfig {
	secure := true
	if rc.Secure != nil {
		secure = *rc.Secure
	}
	return store.RemoteConfig{
		Endpoint:  rc.Endpoint,
		Bucket:    rc.Bucket,
		Prefix:    rc.Prefix,
		AccessKey: rc.AccessKey,
		SecretKey: rc.SecretKey,
		Region:    rc.Region,
		Secure:    secure,
	}
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/kilnbuild/kiln/internal/buildspec"
	"github.com/kilnbuild/kiln/internal/errx"
	"github.com/kilnbuild/kiln/internal/image"
	"github.com/kilnbuild/kiln/internal/paths"
	"github.com/kilnbuild/kiln/internal/store"
)

// File name of the artifact written to the output directory.
const artifactFilename = "image.tar"

// The stage cache the pipeline reads and writes committed stages through.
//
// Implemented by [store.Store]; tests substitute an in-memory fake.
type Cache interface {
	Get(ctx context.Context, key digest.Digest) (string, error)
	Put(ctx context.Context, key digest.Digest, meta store.Meta, src string) (string, error)
}

// Controls one pipeline run.
type Options struct {
	Spec     *buildspec.Spec // Build description (required).
	Context  string          // Build context directory.
	Output   string          // Output directory for the artifact. Defaults to "dist".
	Platform string          // Target OCI platform. Defaults to the host.
	NoCache  bool            // Skip cache lookups; the store is still populated.
	Verbose  bool            // Pass verbose diagnostics to the installers. No effect on keys.
}

// The outcome of one stage within a run.
type StageResult struct {
	Phase  Phase         // Stage that produced (or reused) the layer.
	Key    digest.Digest // Cache key the layer is stored under.
	Cached bool          // True when the layer came from the cache.
}

// Returned after a successful run.
type Result struct {
	Artifact string        // Path of the runnable archive in the output directory.
	Stages   []StageResult // Per-stage outcomes in execution order.
}

// Executes builds: four strictly sequential stages, each a function of the
// prior stage's archive and its own declared inputs, cached by chained
// content digests.
type Pipeline struct {
	engine Engine
	cache  Cache

	// Image operations, injectable for tests.
	pull      func(ctx context.Context, ref, platform, dest string) error
	configEnv func(archive string) ([]string, error)
	activate  func(src, dest string, act image.Activation) error
}

// Creates a pipeline over the given container engine and stage cache.
func New(engine Engine, cache Cache) *Pipeline {
	return &Pipeline{
		engine:    engine,
		cache:     cache,
		pull:      image.Pull,
		configEnv: image.ConfigEnv,
		activate:  image.Activate,
	}
}

// One stage of the execution plan.
type stage struct {
	phase Phase
	key   digest.Digest
	run   func(ctx context.Context, prior, dest string) error
}

// Runs the pipeline for one build spec.
//
// All four stage keys are computed up front, the deepest cached stage is
// located, and only the stages after it execute. A failure at any stage is
// fatal: the run stops, nothing is stored for the failed stage or any
// later one, and the error carries the failed stage's taxonomy sentinel.
// On success the final archive is copied into the output directory.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	spec := opts.Spec
	if opts.Platform == "" {
		opts.Platform = "linux/" + goruntime.GOARCH
	}
	if opts.Output == "" {
		opts.Output = "dist"
	}

	scratch, err := scratchDir()
	if err != nil {
		return nil, errx.Wrap(ErrPipeline, err)
	}
	defer os.RemoveAll(scratch)

	// The manifest is an input to the dependency key, so a missing or
	// unreadable file fails the build before any stage runs.
	manifest, err := buildspec.LoadManifest(filepath.Join(opts.Context, filepath.FromSlash(spec.Manifest)))
	if err != nil {
		return nil, errx.Wrap(ErrSourceTreeUnreadable, err)
	}

	srcTar := filepath.Join(scratch, "source.tar")
	treeDigest, err := sourceTarball(opts.Context, srcTar, excludePaths(opts.Context, opts.Output))
	if err != nil {
		return nil, errx.Wrap(ErrSourceTreeUnreadable, err)
	}

	keys := computeKeys(spec, manifest, treeDigest, opts.Platform)
	slog.Debug("stage keys computed",
		"base", shortKey(keys.Base),
		"source", shortKey(keys.Source),
		"deps", shortKey(keys.Deps),
		"entry", shortKey(keys.Entry),
	)

	runs := map[Phase]func(ctx context.Context, prior, dest string) error{
		PhaseBaseProvisioned:       p.provisionBase(spec.Base, opts.Platform),
		PhaseSourceMaterialized:    p.materializeSource(spec, opts.Platform, srcTar),
		PhaseDependenciesInstalled: p.installDependencies(spec, manifest, opts.Platform, opts.Verbose),
		PhaseEntryPointActive:      p.activateEntry(spec),
	}

	stages := make([]stage, 0, len(phaseOrder))
	for ph, ok := PhaseStart.Next(); ok; ph, ok = ph.Next() {
		stages = append(stages, stage{phase: ph, key: keys.For(ph), run: runs[ph]})
		if ph.Terminal() {
			break
		}
	}

	result := &Result{}
	start, prior, err := p.resume(ctx, stages, opts.NoCache)
	if err != nil {
		return nil, err
	}

	for i := 0; i < start; i++ {
		slog.Info("stage cached", "stage", stages[i].phase, "key", shortKey(stages[i].key))
		result.Stages = append(result.Stages, StageResult{Phase: stages[i].phase, Key: stages[i].key, Cached: true})
	}

	for i := start; i < len(stages); i++ {
		st := stages[i]
		slog.Info("building stage", "stage", st.phase, "key", shortKey(st.key))

		dest := filepath.Join(scratch, string(st.phase)+".tar")
		if err := st.run(ctx, prior, dest); err != nil {
			return nil, errx.Wrapf(ErrPipeline, "stage %s: %w", st.phase, err)
		}

		meta := store.Meta{Stage: string(st.phase), Base: spec.Base}
		if i > 0 {
			meta.Parent = stages[i-1].key.String()
		}
		stored, err := p.cache.Put(ctx, st.key, meta, dest)
		if err != nil {
			return nil, errx.Wrapf(ErrPipeline, "stage %s: %w", st.phase, err)
		}

		prior = stored
		result.Stages = append(result.Stages, StageResult{Phase: st.phase, Key: st.key})
	}

	artifact, err := exportArtifact(prior, opts.Output)
	if err != nil {
		return nil, errx.Wrap(ErrPipeline, err)
	}
	result.Artifact = artifact

	slog.Info("artifact written", "path", artifact)
	return result, nil
}

// Finds the deepest cached stage and returns the index of the first stage
// to execute along with the cached archive it builds on.
func (p *Pipeline) resume(ctx context.Context, stages []stage, noCache bool) (int, string, error) {
	if noCache {
		return 0, "", nil
	}

	for i := len(stages) - 1; i >= 0; i-- {
		path, err := p.cache.Get(ctx, stages[i].key)
		if err == nil {
			return i + 1, path, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return 0, "", errx.Wrap(ErrPipeline, err)
		}
	}
	return 0, "", nil
}

// Copies the final stage archive into the output directory.
func exportArtifact(archive, output string) (string, error) {
	if err := os.MkdirAll(output, paths.DefaultDirMode); err != nil {
		return "", err
	}

	dest := filepath.Join(output, artifactFilename)
	if err := copyFile(archive, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// Creates a per-build scratch directory under the runtime path.
func scratchDir() (string, error) {
	if err := os.MkdirAll(paths.Runtime(), paths.DefaultDirMode); err != nil {
		return "", err
	}
	return os.MkdirTemp(paths.Runtime(), "build-")
}

// Returns the context-relative subtrees to leave out of the source tarball.
//
// Only the output directory qualifies, and only when it lives inside the
// context; otherwise an earlier build's artifact would invalidate the
// source key of the next one.
func excludePaths(contextDir, output string) []string {
	absContext, err := filepath.Abs(contextDir)
	if err != nil {
		return nil
	}
	absOutput, err := filepath.Abs(output)
	if err != nil {
		return nil
	}

	rel, err := filepath.Rel(absContext, absOutput)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{filepath.ToSlash(rel)}
}

// Copies a file's bytes.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, paths.DefaultFileMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

package buildspec

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilnbuild/kiln/internal/errx"
)

// Selects where manifest dependencies are installed.
type Isolation string

const (

	// Dependencies are installed into a self-contained environment whose
	// executable directory takes precedence on the search path.
	IsolationIsolated Isolation = "isolated"

	// Dependencies are installed into the base runtime's global package
	// location. The inherited environment is left untouched.
	IsolationGlobal Isolation = "global"
)

const (

	// Default file name of the build spec inside a build context.
	DefaultFile = "kiln.yaml"

	// Defaults applied by [Load] for omitted fields.
	defaultName     = "app"
	defaultWorkdir  = "/app"
	defaultManifest = "requirements.txt"
)

// Pattern for spec names, which are used in container IDs and image tags.
var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Describes one build: the base runtime, how the source tree and its
// dependencies land in the image, and the command the image runs.
//
// A spec is authored once per project and treated as immutable for the
// duration of a build. The differences between deployment variants
// (isolation mode, system toolchain packages, entry command) are ordinary
// fields, not separate recipe files.
type Spec struct {
	Name           string            `yaml:"name"`            // Artifact name, used in container IDs and image tags.
	Base           string            `yaml:"base"`            // Base image reference including version tag (required).
	Workdir        string            `yaml:"workdir"`         // Absolute working directory inside the image.
	SystemPackages []string          `yaml:"system_packages"` // OS toolchain packages installed before the manifest (may be empty).
	Manifest       string            `yaml:"manifest"`        // Dependency manifest path, relative to the build context.
	Isolation      Isolation         `yaml:"isolation"`       // Where manifest dependencies are installed.
	Entrypoint     []string          `yaml:"entrypoint"`      // Entry command in exec form (required).
	EntryFileName  string            `yaml:"entry_file"`      // Overrides the derived entry file, relative to Workdir.
	Env            map[string]string `yaml:"env"`             // Extra environment for the entry process.
}

// Reads and validates a build spec file.
//
// Unknown fields are rejected so typos surface at load time rather than as
// silently-ignored configuration. Omitted fields receive defaults: name
// "app", workdir "/app", manifest "requirements.txt", isolated mode.
func Load(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.Wrap(ErrSpecRead, err)
	}
	return Parse(raw)
}

// Parses and validates build spec bytes.
func Parse(raw []byte) (*Spec, error) {
	var spec Spec

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, errx.Wrap(ErrSpecSyntax, err)
	}

	spec.applyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Fills omitted fields with their defaults.
func (s *Spec) applyDefaults() {
	if s.Name == "" {
		s.Name = defaultName
	}
	if s.Workdir == "" {
		s.Workdir = defaultWorkdir
	}
	if s.Manifest == "" {
		s.Manifest = defaultManifest
	}
	if s.Isolation == "" {
		s.Isolation = IsolationIsolated
	}
}

// Checks the spec's invariants.
//
// The base reference and entry command are required. The workdir must be
// absolute so the materialized tree has a fixed location. The manifest path
// must stay inside the build context.
func (s *Spec) Validate() error {
	if !namePattern.MatchString(s.Name) {
		return errx.Wrapf(ErrSpecInvalid, "name %q must be lowercase alphanumerics and dashes", s.Name)
	}
	if s.Base == "" {
		return errx.Wrapf(ErrSpecInvalid, "base image reference is required")
	}
	if !path.IsAbs(s.Workdir) {
		return errx.Wrapf(ErrSpecInvalid, "workdir %q must be absolute", s.Workdir)
	}
	if s.Isolation != IsolationIsolated && s.Isolation != IsolationGlobal {
		return errx.Wrapf(ErrSpecInvalid, "isolation %q must be %q or %q", s.Isolation, IsolationIsolated, IsolationGlobal)
	}
	if err := validateContextPath(s.Manifest); err != nil {
		return errx.Wrapf(ErrSpecInvalid, "manifest: %w", err)
	}
	if len(s.Entrypoint) == 0 {
		return errx.Wrapf(ErrSpecInvalid, "entrypoint is required")
	}
	for _, pkg := range s.SystemPackages {
		if strings.TrimSpace(pkg) == "" {
			return errx.Wrapf(ErrSpecInvalid, "system_packages contains an empty entry")
		}
	}
	return nil
}

// Rejects absolute paths and paths that escape the build context.
func validateContextPath(p string) error {
	if p == "" {
		return errx.Wrapf(ErrSpecInvalid, "path is empty")
	}
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return errx.Wrapf(ErrSpecInvalid, "path %q must be relative to the build context", p)
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return errx.Wrapf(ErrSpecInvalid, "path %q escapes the build context", p)
	}
	return nil
}

// Returns the workdir-absolute path of the file the entry command runs, or
// "" when the command does not name one.
//
// The explicit entry_file field wins when set. Otherwise the first
// non-flag argument after the executable that looks like a file path (has a
// path separator or an extension) is taken; an executable that is itself a
// relative path (e.g. "./start.sh") is used when no argument qualifies.
func (s *Spec) EntryFile() string {
	if s.EntryFileName != "" {
		return s.resolveEntry(s.EntryFileName)
	}
	if len(s.Entrypoint) == 0 {
		return ""
	}

	for _, arg := range s.Entrypoint[1:] {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if strings.ContainsRune(arg, '/') || path.Ext(arg) != "" {
			return s.resolveEntry(arg)
		}
		break
	}

	if exe := s.Entrypoint[0]; strings.ContainsRune(exe, '/') && !path.IsAbs(exe) {
		return s.resolveEntry(exe)
	}
	return ""
}

// Joins a possibly-relative entry path with the workdir.
func (s *Spec) resolveEntry(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.Workdir, p)
}

package pipeline

import (
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/kilnbuild/kiln/internal/buildspec"
)

const (

	// Version prefix baked into every cache key. Bumping it invalidates
	// all stored stages when the key format or stage semantics change.
	keySchema = "v1"

	// The installer upgraded before any manifest install. Part of the
	// dependency key so changing the pinned installer invalidates the
	// stage.
	installerPin = "pip:latest"
)

// Separates fields inside key material. The byte cannot appear in any
// field, so distinct inputs cannot collide by concatenation.
const keySep = "\x00"

// The four chained stage cache keys of one build.
//
// Each key digests the previous key plus the stage's own inputs, so a
// change to any upstream input cascades invalidation through every
// downstream stage.
type Keys struct {
	Base   digest.Digest
	Source digest.Digest
	Deps   digest.Digest
	Entry  digest.Digest
}

// Returns the key for the given stage phase.
func (k Keys) For(phase Phase) digest.Digest {
	switch phase {
	case PhaseBaseProvisioned:
		return k.Base
	case PhaseSourceMaterialized:
		return k.Source
	case PhaseDependenciesInstalled:
		return k.Deps
	case PhaseEntryPointActive:
		return k.Entry
	default:
		return ""
	}
}

// Computes all four stage keys for a build.
//
// treeDigest is the digest of the deterministic source tarball, so the
// source key and the materialized bytes cannot diverge.
func computeKeys(spec *buildspec.Spec, manifest *buildspec.Manifest, treeDigest digest.Digest, platform string) Keys {
	var k Keys

	k.Base = chainKey("", "base", spec.Base, platform)
	k.Source = chainKey(k.Base, "source", treeDigest.String(), spec.Workdir)
	k.Deps = chainKey(k.Source, "deps",
		string(manifest.Raw),
		string(spec.Isolation),
		strings.Join(spec.SystemPackages, keySep),
		installerPin,
	)
	k.Entry = chainKey(k.Deps, "entry",
		strings.Join(spec.Entrypoint, keySep),
		flattenEnv(spec.Env),
		spec.Workdir,
		spec.EntryFile(),
	)

	return k
}

// Digests a parent key and stage inputs into the next chained key.
func chainKey(parent digest.Digest, parts ...string) digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()

	h.Write([]byte(keySchema))
	h.Write([]byte(keySep))
	h.Write([]byte(parent.String()))
	for _, part := range parts {
		h.Write([]byte(keySep))
		h.Write([]byte(part))
	}

	return d.Digest()
}

// Renders an env map as sorted "key=value" lines for stable key material.
func flattenEnv(env map[string]string) string {
	entries := make([]string, 0, len(env))
	for k, v := range env {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	return strings.Join(entries, keySep)
}

// Returns a short display form of a key for logs.
func shortKey(key digest.Digest) string {
	encoded := key.Encoded()
	if len(encoded) > 12 {
		return encoded[:12]
	}
	return encoded
}

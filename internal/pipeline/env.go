package pipeline

import (
	"sort"
	"strings"

	"github.com/kilnbuild/kiln/internal/buildspec"
)

const (

	// Directory of the isolated environment inside the image.
	venvDir = "/opt/venv"

	// Executable directory of the isolated environment.
	venvBin = venvDir + "/bin"

	// Search path used when the base image config declares none.
	fallbackPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

// Computes the environment fixed into the artifact.
//
// The base image's config environment is the starting point and its entry
// order is preserved. In isolated mode the isolated environment's
// executable directory is prepended to PATH (a fallback PATH is inserted
// when the base config has none), so the installed tools shadow the base
// runtime's for the entry command and everything it shells out to. In
// global mode the inherited environment is left untouched. Spec env
// entries are applied last, in sorted key order, overriding same-named
// base entries in place.
func executionEnv(baseEnv []string, isolation buildspec.Isolation, extra map[string]string) []string {
	env := make([]string, len(baseEnv))
	copy(env, baseEnv)

	if isolation == buildspec.IsolationIsolated {
		env = prependPath(env, venvBin)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = setEnv(env, k, extra[k])
	}

	return env
}

// Prepends dir to the PATH entry, inserting a default PATH when absent.
func prependPath(env []string, dir string) []string {
	for i, entry := range env {
		if k, v, ok := strings.Cut(entry, "="); ok && k == "PATH" {
			env[i] = "PATH=" + dir + ":" + v
			return env
		}
	}
	return append(env, "PATH="+dir+":"+fallbackPath)
}

// Sets key=value, replacing an existing entry in place or appending.
func setEnv(env []string, key, value string) []string {
	for i, entry := range env {
		if k, _, ok := strings.Cut(entry, "="); ok && k == key {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}

package pipeline

import (
	"strings"

	"github.com/kilnbuild/kiln/internal/errx"
)

// Stderr markers of a package that needed a compiler or native headers it
// could not find. Checked before the network markers: a native build that
// dies mid-download still names the missing toolchain first.
var nativeMarkers = []string{
	"python.h: no such file or directory",
	"ffi.h: no such file or directory",
	"openssl/ssl.h: no such file or directory",
	"gcc: command not found",
	"gcc: not found",
	"cc: command not found",
	"unable to execute 'gcc'",
	"error: command 'gcc'",
	"error: command 'cc'",
	"failed building wheel for",
	"need to install a compiler",
	"error: microsoft visual c++",
}

// Stderr markers of an unreachable package index.
var networkMarkers = []string{
	"could not fetch url",
	"temporary failure in name resolution",
	"name or service not known",
	"connection refused",
	"connection timed out",
	"read timed out",
	"max retries exceeded",
	"newconnectionerror",
	"proxyerror",
	"network is unreachable",
}

// Maps a failed installer invocation onto the failure taxonomy.
//
// Classification order is native, then network, then resolution: anything
// the installer rejects without a recognizable toolchain or transport
// marker counts as unsatisfiable constraints.
func classifyInstall(exitCode int, stderr string) error {
	lowered := strings.ToLower(stderr)

	switch {
	case containsAny(lowered, nativeMarkers):
		return errx.Wrapf(ErrNativeBuild, "installer exit code %d: %s", exitCode, lastLines(stderr, 3))
	case containsAny(lowered, networkMarkers):
		return errx.Wrapf(ErrNetwork, "installer exit code %d: %s", exitCode, lastLines(stderr, 3))
	default:
		return errx.Wrapf(ErrDependencyResolution, "installer exit code %d: %s", exitCode, lastLines(stderr, 3))
	}
}

// Reports whether s contains any of the markers.
func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Returns the last n non-empty lines of s, joined for a one-line error.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}

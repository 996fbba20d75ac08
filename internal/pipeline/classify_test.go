package pipeline

import (
	"errors"
	"testing"
)

func TestClassifyInstall(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{
			name:   "missing python headers",
			stderr: "      src/greenlet.c:12:10: fatal error: Python.h: No such file or directory",
			want:   ErrNativeBuild,
		},
		{
			name:   "missing compiler",
			stderr: "error: command 'gcc' failed: No such file or directory",
			want:   ErrNativeBuild,
		},
		{
			name:   "wheel build failure",
			stderr: "ERROR: Failed building wheel for cryptography",
			want:   ErrNativeBuild,
		},
		{
			name:   "missing ffi headers",
			stderr: "c/_cffi_backend.c:15:10: fatal error: ffi.h: No such file or directory",
			want:   ErrNativeBuild,
		},
		{
			name:   "index unreachable",
			stderr: "WARNING: Retrying (Retry(total=0)) after connection broken by 'NewConnectionError'",
			want:   ErrNetwork,
		},
		{
			name:   "dns failure",
			stderr: "Could not fetch URL https://pypi.org/simple/requests/: Temporary failure in name resolution",
			want:   ErrNetwork,
		},
		{
			name:   "timeout",
			stderr: "ReadTimeoutError: HTTPSConnectionPool(host='pypi.org', port=443): Read timed out.",
			want:   ErrNetwork,
		},
		{
			name:   "unknown package",
			stderr: "ERROR: No matching distribution found for no-such-package",
			want:   ErrDependencyResolution,
		},
		{
			name:   "version conflict",
			stderr: "ERROR: ResolutionImpossible: for help visit ...",
			want:   ErrDependencyResolution,
		},
		{
			name:   "anything else",
			stderr: "ERROR: some novel installer complaint",
			want:   ErrDependencyResolution,
		},
		{
			// Native markers win over network markers; a native build that
			// also logged a retry is still a toolchain problem.
			name:   "native beats network",
			stderr: "connection refused\nfatal error: Python.h: No such file or directory",
			want:   ErrNativeBuild,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyInstall(1, tt.stderr)
			if !errors.Is(err, tt.want) {
				t.Fatalf("classifyInstall = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClassifySystem(t *testing.T) {
	tests := []string{
		"E: Unable to locate package no-such-package",
		"Err:1 http://deb.debian.org/debian bookworm InRelease\n  Temporary failure resolving 'deb.debian.org'",
	}

	for _, stderr := range tests {
		err := classifySystem(100, stderr)
		if !errors.Is(err, ErrSystemPackageInstall) {
			t.Fatalf("classifySystem = %v, want ErrSystemPackageInstall", err)
		}
	}
}

func TestLastLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{name: "fewer than n", input: "one\ntwo", n: 3, want: "one | two"},
		{name: "more than n", input: "a\nb\nc\nd", n: 2, want: "c | d"},
		{name: "blank lines skipped", input: "a\n\n\nb\n", n: 2, want: "a | b"},
		{name: "empty", input: "", n: 3, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lastLines(tt.input, tt.n); got != tt.want {
				t.Fatalf("lastLines = %q, want %q", got, tt.want)
			}
		})
	}
}

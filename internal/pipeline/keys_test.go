package pipeline

import (
	"testing"

	"github.com/opencontainers/go-digest"

	"github.com/kilnbuild/kiln/internal/buildspec"
)

func testSpec() *buildspec.Spec {
	return &buildspec.Spec{
		Name:       "app",
		Base:       "python:3.11-slim",
		Workdir:    "/app",
		Manifest:   "requirements.txt",
		Isolation:  buildspec.IsolationIsolated,
		Entrypoint: []string{"python", "main.py"},
	}
}

func testManifest(raw string) *buildspec.Manifest {
	m, err := buildspec.ParseManifest([]byte(raw))
	if err != nil {
		panic(err)
	}
	return m
}

func TestComputeKeysStable(t *testing.T) {
	tree := digest.FromString("tree")

	a := computeKeys(testSpec(), testManifest("requests==2.31.0\n"), tree, "linux/amd64")
	b := computeKeys(testSpec(), testManifest("requests==2.31.0\n"), tree, "linux/amd64")

	if a != b {
		t.Fatalf("keys differ for identical inputs:\n%+v\n%+v", a, b)
	}
}

// Changing an input invalidates that stage's key and every key after it,
// never a key before it.
func TestComputeKeysInvalidation(t *testing.T) {
	tree := digest.FromString("tree")
	base := computeKeys(testSpec(), testManifest("requests==2.31.0\n"), tree, "linux/amd64")

	tests := []struct {
		name      string
		keys      Keys
		fromStage int // index into phaseOrder of the first key that must change
	}{
		{
			name: "base ref changes everything",
			keys: computeKeys(func() *buildspec.Spec {
				s := testSpec()
				s.Base = "python:3.12-slim"
				return s
			}(), testManifest("requests==2.31.0\n"), tree, "linux/amd64"),
			fromStage: 0,
		},
		{
			name:      "platform changes everything",
			keys:      computeKeys(testSpec(), testManifest("requests==2.31.0\n"), tree, "linux/arm64"),
			fromStage: 0,
		},
		{
			name:      "source tree changes source onward",
			keys:      computeKeys(testSpec(), testManifest("requests==2.31.0\n"), digest.FromString("other tree"), "linux/amd64"),
			fromStage: 1,
		},
		{
			name:      "manifest changes deps onward",
			keys:      computeKeys(testSpec(), testManifest("requests==2.32.0\n"), tree, "linux/amd64"),
			fromStage: 2,
		},
		{
			name: "isolation changes deps onward",
			keys: computeKeys(func() *buildspec.Spec {
				s := testSpec()
				s.Isolation = buildspec.IsolationGlobal
				return s
			}(), testManifest("requests==2.31.0\n"), tree, "linux/amd64"),
			fromStage: 2,
		},
		{
			name: "system packages change deps onward",
			keys: computeKeys(func() *buildspec.Spec {
				s := testSpec()
				s.SystemPackages = []string{"build-essential"}
				return s
			}(), testManifest("requests==2.31.0\n"), tree, "linux/amd64"),
			fromStage: 2,
		},
		{
			name: "entrypoint changes entry only",
			keys: computeKeys(func() *buildspec.Spec {
				s := testSpec()
				s.Entrypoint = []string{"python", "research_bot.py"}
				return s
			}(), testManifest("requests==2.31.0\n"), tree, "linux/amd64"),
			fromStage: 3,
		},
		{
			name: "runtime env changes entry only",
			keys: computeKeys(func() *buildspec.Spec {
				s := testSpec()
				s.Env = map[string]string{"PYTHONUNBUFFERED": "1"}
				return s
			}(), testManifest("requests==2.31.0\n"), tree, "linux/amd64"),
			fromStage: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, phase := range phaseOrder {
				got := tt.keys.For(phase)
				want := base.For(phase)
				if i < tt.fromStage && got != want {
					t.Errorf("%s key changed, want unchanged", phase)
				}
				if i >= tt.fromStage && got == want {
					t.Errorf("%s key unchanged, want changed", phase)
				}
			}
		})
	}
}

func TestChainKeySeparation(t *testing.T) {
	// Concatenation across field boundaries must not collide.
	a := chainKey("", "ab", "c")
	b := chainKey("", "a", "bc")
	if a == b {
		t.Fatal("keys collide across field boundaries")
	}
}

func TestKeysFor(t *testing.T) {
	keys := computeKeys(testSpec(), testManifest(""), digest.FromString("tree"), "linux/amd64")

	if keys.For(PhaseBaseProvisioned) != keys.Base {
		t.Error("For(base) != Base")
	}
	if keys.For(PhaseEntryPointActive) != keys.Entry {
		t.Error("For(entry) != Entry")
	}
	if keys.For(PhaseFailed) != "" {
		t.Error("For(failed) should be empty")
	}
}

func TestFlattenEnvSorted(t *testing.T) {
	a := flattenEnv(map[string]string{"B": "2", "A": "1"})
	b := flattenEnv(map[string]string{"A": "1", "B": "2"})
	if a != b {
		t.Fatalf("flattenEnv order-dependent: %q vs %q", a, b)
	}
}

func TestShortKey(t *testing.T) {
	key := digest.FromString("x")
	short := shortKey(key)
	if len(short) != 12 {
		t.Fatalf("len(shortKey) = %d, want 12", len(short))
	}
}

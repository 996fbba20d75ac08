package buildspec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDefaults(t *testing.T) {
	spec, err := Parse([]byte("base: python:3.11-slim\nentrypoint: [\"python\", \"main.py\"]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if spec.Name != "app" {
		t.Errorf("Name = %q, want %q", spec.Name, "app")
	}
	if spec.Workdir != "/app" {
		t.Errorf("Workdir = %q, want %q", spec.Workdir, "/app")
	}
	if spec.Manifest != "requirements.txt" {
		t.Errorf("Manifest = %q, want %q", spec.Manifest, "requirements.txt")
	}
	if spec.Isolation != IsolationIsolated {
		t.Errorf("Isolation = %q, want %q", spec.Isolation, IsolationIsolated)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("base: python:3.11\nentrypoint: [\"python\"]\nentrypont: [\"typo\"]\n"))
	if !errors.Is(err, ErrSpecSyntax) {
		t.Fatalf("err = %v, want ErrSpecSyntax", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Spec {
		return Spec{
			Name:       "app",
			Base:       "python:3.11-slim",
			Workdir:    "/app",
			Manifest:   "requirements.txt",
			Isolation:  IsolationIsolated,
			Entrypoint: []string{"python", "main.py"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(s *Spec) {},
		},
		{
			name:    "missing base",
			mutate:  func(s *Spec) { s.Base = "" },
			wantErr: true,
		},
		{
			name:    "missing entrypoint",
			mutate:  func(s *Spec) { s.Entrypoint = nil },
			wantErr: true,
		},
		{
			name:    "relative workdir",
			mutate:  func(s *Spec) { s.Workdir = "app" },
			wantErr: true,
		},
		{
			name:    "unknown isolation",
			mutate:  func(s *Spec) { s.Isolation = "hermetic" },
			wantErr: true,
		},
		{
			name:    "absolute manifest",
			mutate:  func(s *Spec) { s.Manifest = "/etc/requirements.txt" },
			wantErr: true,
		},
		{
			name:    "manifest escapes context",
			mutate:  func(s *Spec) { s.Manifest = "../requirements.txt" },
			wantErr: true,
		},
		{
			name:    "uppercase name",
			mutate:  func(s *Spec) { s.Name = "App" },
			wantErr: true,
		},
		{
			name:    "empty system package",
			mutate:  func(s *Spec) { s.SystemPackages = []string{"gcc", " "} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid()
			tt.mutate(&spec)

			err := spec.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrSpecInvalid) {
					t.Fatalf("err = %v, want ErrSpecInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestEntryFile(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{
			name: "script argument",
			spec: Spec{Workdir: "/app", Entrypoint: []string{"python", "main.py"}},
			want: "/app/main.py",
		},
		{
			name: "flag before script",
			spec: Spec{Workdir: "/app", Entrypoint: []string{"python", "-u", "research_bot.py"}},
			want: "/app/research_bot.py",
		},
		{
			name: "absolute script",
			spec: Spec{Workdir: "/app", Entrypoint: []string{"python", "/srv/main.py"}},
			want: "/srv/main.py",
		},
		{
			name: "relative executable",
			spec: Spec{Workdir: "/app", Entrypoint: []string{"./start.sh"}},
			want: "/app/start.sh",
		},
		{
			name: "explicit override",
			spec: Spec{Workdir: "/app", EntryFileName: "bot/run.py", Entrypoint: []string{"python", "-m", "bot"}},
			want: "/app/bot/run.py",
		},
		{
			name: "module invocation has no file",
			spec: Spec{Workdir: "/app", Entrypoint: []string{"python", "-m", "bot"}},
			want: "",
		},
		{
			name: "bare executable has no file",
			spec: Spec{Workdir: "/app", Entrypoint: []string{"python"}},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.EntryFile(); got != tt.want {
				t.Fatalf("EntryFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

// The three observed deployment variants reduce to field differences on one
// spec type.
func TestLoadVariants(t *testing.T) {
	tests := []struct {
		file      string
		isolation Isolation
		packages  int
		entryFile string
	}{
		{file: "global.yaml", isolation: IsolationGlobal, entryFile: "/app/main.py"},
		{file: "isolated.yaml", isolation: IsolationIsolated, entryFile: "/app/main.py"},
		{file: "toolchain.yaml", isolation: IsolationIsolated, packages: 4, entryFile: "/app/research_bot.py"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			spec, err := Load(filepath.Join("testdata", tt.file))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if spec.Isolation != tt.isolation {
				t.Errorf("Isolation = %q, want %q", spec.Isolation, tt.isolation)
			}
			if len(spec.SystemPackages) != tt.packages {
				t.Errorf("len(SystemPackages) = %d, want %d", len(spec.SystemPackages), tt.packages)
			}
			if got := spec.EntryFile(); got != tt.entryFile {
				t.Errorf("EntryFile() = %q, want %q", got, tt.entryFile)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "kiln.yaml"))
	if !errors.Is(err, ErrSpecRead) {
		t.Fatalf("err = %v, want ErrSpecRead", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist in chain", err)
	}
}

func TestToolchainVariantPackages(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "toolchain.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"build-essential", "libssl-dev", "libffi-dev", "python3-dev"}
	if diff := cmp.Diff(want, spec.SystemPackages); diff != "" {
		t.Fatalf("SystemPackages mismatch (-want +got):\n%s", diff)
	}
}

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
)

func testArchive(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.tar")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func TestPutGet(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	key := digest.FromString("stage-1")
	src := testArchive(t, "layer bytes")

	stored, err := s.Put(context.Background(), key, Meta{Stage: "base-provisioned"}, src)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != stored {
		t.Fatalf("Get = %q, want %q", got, stored)
	}

	raw, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read stored archive: %v", err)
	}
	if string(raw) != "layer bytes" {
		t.Fatalf("stored archive = %q, want %q", raw, "layer bytes")
	}
}

func TestGetMiss(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = s.Get(context.Background(), digest.FromString("absent"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutExistingKeyIsNoop(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	key := digest.FromString("stage-2")
	first, err := s.Put(context.Background(), key, Meta{Stage: "source-materialized"}, testArchive(t, "original"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Identical keys imply identical content; the second write must not
	// replace the record.
	second, err := s.Put(context.Background(), key, Meta{Stage: "source-materialized"}, testArchive(t, "would differ"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if second != first {
		t.Fatalf("second Put = %q, want %q", second, first)
	}

	raw, _ := os.ReadFile(first)
	if string(raw) != "original" {
		t.Fatalf("stored archive = %q, want %q", raw, "original")
	}
}

func TestStat(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	key := digest.FromString("stage-3")
	parent := digest.FromString("stage-2")
	src := testArchive(t, "12345")

	if _, err := s.Put(context.Background(), key, Meta{Parent: parent.String(), Stage: "dependencies-installed", Base: "python:3.11-slim"}, src); err != nil {
		t.Fatalf("Put: %v", err)
	}

	meta, err := s.Stat(key)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if meta.Key != key.String() {
		t.Errorf("Key = %q, want %q", meta.Key, key)
	}
	if meta.Parent != parent.String() {
		t.Errorf("Parent = %q, want %q", meta.Parent, parent)
	}
	if meta.Stage != "dependencies-installed" {
		t.Errorf("Stage = %q, want %q", meta.Stage, "dependencies-installed")
	}
	if meta.Size != 5 {
		t.Errorf("Size = %d, want 5", meta.Size)
	}
	if meta.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestStatMiss(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = s.Stat(digest.FromString("absent"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInvalidKey(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := s.Get(context.Background(), digest.Digest("not-a-digest")); !errors.Is(err, ErrStore) {
		t.Fatalf("Get err = %v, want ErrStore", err)
	}
	if _, err := s.Put(context.Background(), digest.Digest("not-a-digest"), Meta{}, testArchive(t, "x")); !errors.Is(err, ErrStore) {
		t.Fatalf("Put err = %v, want ErrStore", err)
	}
}

func TestRemoteObjectKey(t *testing.T) {
	key := digest.FromString("record")

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "no prefix", prefix: "", want: "sha256/" + key.Encoded() + "/image.tar"},
		{name: "with prefix", prefix: "team/kiln", want: "team/kiln/sha256/" + key.Encoded() + "/image.tar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Remote{prefix: tt.prefix}
			if got := r.objectKey(key, "image.tar"); got != tt.want {
				t.Fatalf("objectKey = %q, want %q", got, tt.want)
			}
		})
	}
}

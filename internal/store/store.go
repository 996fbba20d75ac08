package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/kilnbuild/kiln/internal/errx"
	"github.com/kilnbuild/kiln/internal/paths"
)

const (

	// Archive file name inside a store record.
	archiveName = "image.tar"

	// Metadata file name inside a store record.
	metaName = "meta.json"

	// Staging directory for records being written.
	tmpDirName = "tmp"
)

// Descriptive metadata stored next to each archive.
type Meta struct {
	Key       string    `json:"key"`              // Digest the record is stored under.
	Parent    string    `json:"parent,omitempty"` // Digest of the prior stage's record.
	Stage     string    `json:"stage"`            // Pipeline stage that produced the record.
	Base      string    `json:"base,omitempty"`   // Base image reference of the build.
	CreatedAt time.Time `json:"created_at"`       // When the record was committed.
	Size      int64     `json:"size"`             // Archive size in bytes.
}

// A content-addressed archive store with an optional remote tier.
//
// Records are keyed by digest and immutable once written: a record is
// assembled in a staging directory and renamed into place, so readers never
// observe partial state and concurrent writers of the same key settle on
// identical content. When a remote tier is configured, Get reads through it
// on a local miss and Put writes through to it on a best-effort basis.
type Store struct {
	dir    string
	remote *Remote
}

// Opens a store rooted at dir, creating it as needed.
//
// remote may be nil for a purely local store.
func Open(dir string, remote *Remote) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, tmpDirName), paths.DefaultDirMode); err != nil {
		return nil, errx.Wrap(ErrStore, err)
	}
	return &Store{dir: dir, remote: remote}, nil
}

// Returns the path of the archive stored under key.
//
// On a local miss the remote tier, when configured, is consulted and a hit
// is materialized locally before the path is returned. A miss in every
// tier returns [ErrNotFound].
func (s *Store) Get(ctx context.Context, key digest.Digest) (string, error) {
	if err := key.Validate(); err != nil {
		return "", errx.Wrap(ErrStore, err)
	}

	archive := filepath.Join(s.recordDir(key), archiveName)
	if _, err := os.Stat(archive); err == nil {
		return archive, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", errx.Wrap(ErrStore, err)
	}

	if s.remote == nil {
		return "", errx.Wrapf(ErrNotFound, "%s", key)
	}
	return s.fetchRemote(ctx, key)
}

// Reads the metadata of the record stored under key.
func (s *Store) Stat(key digest.Digest) (Meta, error) {
	raw, err := os.ReadFile(filepath.Join(s.recordDir(key), metaName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, errx.Wrapf(ErrNotFound, "%s", key)
		}
		return Meta{}, errx.Wrap(ErrStore, err)
	}

	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, errx.Wrap(ErrStore, err)
	}
	return meta, nil
}

// Stores the archive at src under key and returns the stored path.
//
// The record is staged under a temporary name and renamed into place.
// Storing a key that already exists is a no-op: content is addressed by
// digest, so an existing record is identical by construction. When a
// remote tier is configured the record is uploaded after the local commit;
// an upload failure is logged, not fatal.
func (s *Store) Put(ctx context.Context, key digest.Digest, meta Meta, src string) (string, error) {
	if err := key.Validate(); err != nil {
		return "", errx.Wrap(ErrStore, err)
	}

	recordDir := s.recordDir(key)
	archive := filepath.Join(recordDir, archiveName)
	if _, err := os.Stat(archive); err == nil {
		return archive, nil
	}

	size, err := fileSize(src)
	if err != nil {
		return "", errx.Wrap(ErrStore, err)
	}
	meta.Key = key.String()
	meta.CreatedAt = time.Now().UTC()
	meta.Size = size

	staging, err := s.stage(key, meta, src)
	if err != nil {
		return "", err
	}

	if err := s.commit(staging, recordDir); err != nil {
		return "", err
	}

	if s.remote != nil {
		if err := s.remote.store(ctx, key, recordDir); err != nil {
			slog.Warn("remote cache upload failed", "key", key, "error", err)
		}
	}

	return archive, nil
}

// Assembles a record in the staging directory and returns its path.
func (s *Store) stage(key digest.Digest, meta Meta, src string) (string, error) {
	staging, err := os.MkdirTemp(filepath.Join(s.dir, tmpDirName), "put-")
	if err != nil {
		return "", errx.Wrap(ErrStore, err)
	}

	if err := copyFile(src, filepath.Join(staging, archiveName)); err != nil {
		os.RemoveAll(staging)
		return "", errx.Wrap(ErrStore, err)
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		os.RemoveAll(staging)
		return "", errx.Wrap(ErrStore, err)
	}
	if err := os.WriteFile(filepath.Join(staging, metaName), raw, paths.DefaultFileMode); err != nil {
		os.RemoveAll(staging)
		return "", errx.Wrap(ErrStore, err)
	}

	return staging, nil
}

// Renames a staged record into its final location.
//
// A rename failure because the destination appeared in the meantime is not
// an error; the concurrent writer stored identical content.
func (s *Store) commit(staging, recordDir string) error {
	if err := os.MkdirAll(filepath.Dir(recordDir), paths.DefaultDirMode); err != nil {
		os.RemoveAll(staging)
		return errx.Wrap(ErrStore, err)
	}

	if err := os.Rename(staging, recordDir); err != nil {
		defer os.RemoveAll(staging)
		if _, statErr := os.Stat(recordDir); statErr == nil {
			return nil
		}
		return errx.Wrap(ErrStore, err)
	}
	return nil
}

// Downloads a record from the remote tier into the local store.
func (s *Store) fetchRemote(ctx context.Context, key digest.Digest) (string, error) {
	staging, err := os.MkdirTemp(filepath.Join(s.dir, tmpDirName), "fetch-")
	if err != nil {
		return "", errx.Wrap(ErrStore, err)
	}

	if err := s.remote.fetch(ctx, key, staging); err != nil {
		os.RemoveAll(staging)
		return "", err
	}

	recordDir := s.recordDir(key)
	if err := s.commit(staging, recordDir); err != nil {
		return "", err
	}

	slog.Debug("record fetched from remote cache", "key", key)
	return filepath.Join(recordDir, archiveName), nil
}

// Returns the directory a key's record lives in.
func (s *Store) recordDir(key digest.Digest) string {
	return filepath.Join(s.dir, key.Algorithm().String(), key.Encoded())
}

// Copies a file's contents, preserving nothing but the bytes.
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

// Returns the size of the file at path.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

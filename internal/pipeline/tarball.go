package pipeline

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/kilnbuild/kiln/internal/paths"
)

// Fixed modification time for every tarball entry.
var zeroTime = time.Unix(0, 0).UTC()

// Writes a deterministic tarball of the build context to dest and returns
// its digest.
//
// Determinism is the point: the same tree must produce the same bytes so
// the source cache key is stable across machines and runs. The walk is
// lexical, entry names use slash paths, file modes are preserved, and
// everything host-dependent (mtimes, uid/gid, user names) is zeroed.
// Symlinks are preserved as links. Subtrees named in exclude (relative to
// the context) are skipped, which keeps a build output directory living
// inside the context from feeding back into the next build's key.
func sourceTarball(contextDir, dest string, exclude []string) (digest.Digest, error) {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, paths.DefaultFileMode)
	if err != nil {
		return "", err
	}

	digester := digest.Canonical.Digester()
	tw := tar.NewWriter(io.MultiWriter(f, digester.Hash()))

	walkErr := filepath.WalkDir(contextDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(contextDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		name := filepath.ToSlash(rel)
		if excluded(name, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		return writeEntry(tw, path, name, d)
	})

	if closeErr := tw.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if closeErr := f.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if walkErr != nil {
		os.Remove(dest)
		return "", walkErr
	}

	return digester.Digest(), nil
}

// Writes one filesystem entry with normalized metadata.
func writeEntry(tw *tar.Writer, path, name string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	header.Name = name
	if info.IsDir() {
		header.Name += "/"
	}
	header.ModTime = zeroTime
	header.AccessTime = time.Time{}
	header.ChangeTime = time.Time{}
	header.Uid = 0
	header.Gid = 0
	header.Uname = ""
	header.Gname = ""
	header.Format = tar.FormatPAX

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Reports whether a slash-relative name falls under an excluded subtree.
func excluded(name string, exclude []string) bool {
	for _, ex := range exclude {
		if ex == "" {
			continue
		}
		if name == ex || strings.HasPrefix(name, ex+"/") {
			return true
		}
	}
	return false
}

package image

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	"github.com/kilnbuild/kiln/internal/errx"
)

// Function used to pull images, injectable for tests.
var cranePull = crane.Pull

// Pulls the image for the given reference and platform and saves it as a
// tar archive at dest.
//
// An unresolvable name or tag maps to [ErrNotFound]; a transport failure
// reaching the registry maps to [ErrUnreachable]. No retries are performed;
// a transient failure is surfaced to the caller.
func Pull(ctx context.Context, ref, platform, dest string) error {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return errx.Wrap(ErrNotFound, err)
	}

	p, err := parsePlatform(platform)
	if err != nil {
		return errx.Wrap(ErrImage, err)
	}

	slog.Debug("pulling base image", "ref", parsed.Name(), "platform", platform)

	img, err := cranePull(parsed.Name(),
		crane.WithContext(ctx),
		crane.WithPlatform(p),
	)
	if err != nil {
		return classifyPull(ref, err)
	}

	if err := crane.Save(img, parsed.Name(), dest); err != nil {
		return errx.Wrap(ErrImage, err)
	}

	return nil
}

// Parses an OCI platform string of the form "os/arch" or "os/arch/variant".
func parsePlatform(platform string) (*v1.Platform, error) {
	parts := strings.Split(platform, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return nil, errx.Wrapf(ErrImage, "invalid platform %q", platform)
	}

	p := &v1.Platform{OS: parts[0], Architecture: parts[1]}
	if len(parts) == 3 {
		p.Variant = parts[2]
	}
	return p, nil
}

// Maps a registry pull failure onto the package's error taxonomy.
//
// A 404 or an explicit name/manifest-unknown diagnostic means the reference
// does not resolve. Anything else reaching this point is a transport
// problem between the client and the registry.
func classifyPull(ref string, err error) error {
	var terr *transport.Error
	if errors.As(err, &terr) {
		if terr.StatusCode == http.StatusNotFound || hasCode(terr, transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode) {
			return errx.Wrapf(ErrNotFound, "%s: %w", ref, err)
		}
	}
	return errx.Wrapf(ErrUnreachable, "%s: %w", ref, err)
}

// Reports whether the transport error carries one of the given diagnostic
// codes.
func hasCode(terr *transport.Error, codes ...transport.ErrorCode) bool {
	for _, diag := range terr.Errors {
		for _, code := range codes {
			if diag.Code == code {
				return true
			}
		}
	}
	return false
}

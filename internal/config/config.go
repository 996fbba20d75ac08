package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/kilnbuild/kiln/internal/errx"
	"github.com/kilnbuild/kiln/internal/paths"
)

// Base name of the config file, without extension.
const fileBase = "config"

// Connection settings for the containerd daemon.
type Containerd struct {
	Address   string `json:"address,omitempty"`   // Socket path of the containerd daemon.
	Namespace string `json:"namespace,omitempty"` // Namespace scoping all containerd operations.
}

// Settings for the stage store.
type Store struct {
	Dir    string  `json:"dir,omitempty"`    // Directory of the local store. Defaults to the cache path.
	Remote *Remote `json:"remote,omitempty"` // Optional shared S3 tier.
}

// Connection settings for a shared S3-compatible store tier.
type Remote struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Region    string `json:"region,omitempty"`
	Secure    *bool  `json:"secure,omitempty"`
}

// Tool configuration, merged from defaults and the user's config file.
type Config struct {
	Containerd Containerd `json:"containerd"`
	Store      Store      `json:"store"`
}

// Returns the built-in defaults.
func Default() Config {
	return Config{
		Containerd: Containerd{
			Address:   "/run/containerd/containerd.sock",
			Namespace: "kiln",
		},
		Store: Store{
			Dir: paths.Store(),
		},
	}
}

// Loads the tool configuration.
//
// With an explicit path the file must exist and parse. Otherwise the user
// config directory is probed for config.json or config.jsonc; a missing
// file yields the defaults, while both variants present at once is an
// error. Values from the file are merged over the defaults, and both
// extensions accept comments and trailing commas (JWCC).
func Load(explicit string) (Config, error) {
	cfg := Default()

	path := explicit
	if path == "" {
		found, err := findFile(filepath.Join(paths.Config(), fileBase))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return cfg, nil
			}
			return Config{}, err
		}
		path = found
	}

	loaded, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}

	return merge(cfg, loaded), nil
}

// Probes for base.json and base.jsonc, rejecting the ambiguous case where
// both exist.
func findFile(base string) (string, error) {
	jsonPath := base + ".json"
	jsoncPath := base + ".jsonc"

	jsonExists := fileExists(jsonPath)
	jsoncExists := fileExists(jsoncPath)

	switch {
	case jsonExists && jsoncExists:
		return "", errx.Wrapf(ErrDuplicateConfig, "both %s and %s exist; remove one", jsonPath, jsoncPath)
	case jsonExists:
		return jsonPath, nil
	case jsoncExists:
		return jsoncPath, nil
	}
	return "", os.ErrNotExist
}

// Whether a regular file exists at path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Reads and parses one config file.
func loadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errx.Wrap(ErrConfigRead, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, errx.Wrapf(ErrConfigSyntax, "%s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, errx.Wrapf(ErrConfigSyntax, "%s: %w", path, err)
	}
	return cfg, nil
}

// Merges file values over the defaults. Zero values in the file leave the
// default in place.
func merge(base, override Config) Config {
	if override.Containerd.Address != "" {
		base.Containerd.Address = override.Containerd.Address
	}
	if override.Containerd.Namespace != "" {
		base.Containerd.Namespace = override.Containerd.Namespace
	}
	if override.Store.Dir != "" {
		base.Store.Dir = override.Store.Dir
	}
	if override.Store.Remote != nil {
		base.Store.Remote = override.Store.Remote
	}
	return base
}

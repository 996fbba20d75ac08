package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	toolName = "kiln"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for cached build state.
//
//	Linux:   $XDG_CACHE_HOME/kiln or ~/.cache/kiln
//	macOS:   ~/Library/Caches/kiln
func Cache() string {
	return filepath.Join(xdg.CacheHome, toolName)
}

// Default path to the stage store, where committed pipeline stages are kept
// keyed by digest.
//
//	Linux:   $XDG_CACHE_HOME/kiln/store
//	macOS:   ~/Library/Caches/kiln/store
func Store() string {
	return filepath.Join(Cache(), "store")
}

// Path to the directory for user configuration.
//
//	Linux:   $XDG_CONFIG_HOME/kiln or ~/.config/kiln
//	macOS:   ~/Library/Application Support/kiln
func Config() string {
	return filepath.Join(xdg.ConfigHome, toolName)
}

// Path to the directory for transient files (pulled archives awaiting
// import, scratch exports).
//
//	Linux:   $XDG_RUNTIME_DIR/kiln or /run/user/<uid>/kiln
//	macOS:   ~/Library/Caches/kiln/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, toolName)
	}
	return filepath.Join(xdg.CacheHome, toolName, "run")
}

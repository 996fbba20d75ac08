// Package config loads the tool configuration.
//
// Configuration lives in the user config directory as config.json or
// config.jsonc; both accept comments and trailing commas. A missing file
// yields the built-in defaults, and command-line flags override whatever
// the file sets.
//
//	{
//	    // containerd connection
//	    "containerd": {"address": "/run/containerd/containerd.sock"},
//
//	    // shared stage store
//	    "store": {
//	        "remote": {"endpoint": "minio.internal:9000", "bucket": "kiln-stages"},
//	    },
//	}
package config

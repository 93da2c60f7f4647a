package index

import (
	"os"
	"path/filepath"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/platform"
)

// Fallback roots used when the usual environment values are absent. They
// keep ResolveRoot total: a path is always returned, even one that does not
// exist (discovery then simply finds nothing).
const (
	fallbackLinuxConfig = "/tmp"
	fallbackWindowsBase = `C:\`
)

// vscodeStorageRel is the workspaceStorage location relative to the VS Code
// user-data directory.
var vscodeStorageRel = filepath.Join("Code", "User", "workspaceStorage")

// ResolveRoot determines the single root directory holding per-workspace
// session containers. An override that exists on disk wins; otherwise the
// platform default is derived from environment values. Never fails.
func ResolveRoot(override string, p platform.Platform) string {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return override
		}
	}

	switch p {
	case platform.Windows:
		base := os.Getenv("APPDATA")
		if base == "" {
			base = fallbackWindowsBase
		}
		return filepath.Join(base, vscodeStorageRel)
	case platform.MacOS:
		home, err := os.UserHomeDir()
		if err != nil {
			home = fallbackLinuxConfig
		}
		return filepath.Join(home, "Library", "Application Support", vscodeStorageRel)
	default:
		// linux, wsl and anything unrecognized follow the XDG convention
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				home = fallbackLinuxConfig
			}
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, vscodeStorageRel)
	}
}

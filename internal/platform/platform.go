package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform identifies the host environment. WSL matters here because the
// default VS Code storage location differs between a native Linux install
// and code running against the Windows-side installation.
type Platform string

const (
	MacOS   Platform = "macos"
	Linux   Platform = "linux"
	WSL     Platform = "wsl"
	Windows Platform = "windows"
	Unknown Platform = "unknown"
)

var (
	detected     Platform
	detectionRan bool
)

// Detect returns the current platform, caching the result.
func Detect() Platform {
	if detectionRan {
		return detected
	}
	detected = detect()
	detectionRan = true
	return detected
}

func detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	case "linux":
		if isWSL() {
			return WSL
		}
		return Linux
	default:
		return Unknown
	}
}

// isWSL checks for WSL signatures: the distro env var set by the WSL init
// process, or a Microsoft kernel string in /proc/version.
func isWSL() bool {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return true
	}
	version, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	v := strings.ToLower(string(version))
	return strings.Contains(v, "microsoft")
}

// String returns a human-readable platform name.
func (p Platform) String() string {
	switch p {
	case MacOS:
		return "macOS"
	case Linux:
		return "Linux"
	case WSL:
		return "WSL"
	case Windows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// CheckNotifySupport reports whether a path sits on a filesystem where
// fsnotify events are unreliable (9p, nfs, cifs, sshfs). Returns a warning
// message for the log, or "" when watching should work normally.
func CheckNotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}

	// Longest mountpoint prefix wins.
	// /proc/mounts format: device mountpoint fstype options ...
	var matchedMount, matchedFsType string
	for _, line := range strings.Split(string(mounts), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if strings.HasPrefix(absPath, fields[1]) && len(fields[1]) > len(matchedMount) {
			matchedMount = fields[1]
			matchedFsType = fields[2]
		}
	}

	switch {
	case matchedFsType == "9p":
		return "session root on 9p mount (WSL Windows filesystem): change watching disabled, rescans rely on the freshness window"
	case matchedFsType == "nfs" || matchedFsType == "nfs4":
		return "session root on NFS mount: change watching may be unreliable"
	case matchedFsType == "cifs" || matchedFsType == "smbfs":
		return "session root on CIFS/SMB mount: change watching may be unreliable"
	case strings.HasPrefix(matchedFsType, "fuse.sshfs"):
		return "session root on SSHFS mount: change watching disabled"
	}

	return ""
}

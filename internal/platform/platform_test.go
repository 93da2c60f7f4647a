package platform

import (
	"runtime"
	"testing"
)

func TestDetectMatchesGOOS(t *testing.T) {
	p := Detect()

	switch runtime.GOOS {
	case "darwin":
		if p != MacOS {
			t.Errorf("expected macos on darwin, got %v", p)
		}
	case "windows":
		if p != Windows {
			t.Errorf("expected windows, got %v", p)
		}
	case "linux":
		if p != Linux && p != WSL {
			t.Errorf("expected linux or wsl, got %v", p)
		}
	}
}

func TestDetectIsCached(t *testing.T) {
	first := Detect()
	second := Detect()
	if first != second {
		t.Errorf("Detect not stable: %v then %v", first, second)
	}
}

func TestPlatformString(t *testing.T) {
	cases := map[Platform]string{
		MacOS:   "macOS",
		Linux:   "Linux",
		WSL:     "WSL",
		Windows: "Windows",
		Unknown: "Unknown",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", p, got, want)
		}
	}
}

func TestCheckNotifySupportOnLocalPath(t *testing.T) {
	// Temp dirs live on a regular filesystem in CI; no warning expected.
	if msg := CheckNotifySupport(t.TempDir()); msg != "" {
		t.Logf("unexpected warning (may be environment-specific): %s", msg)
	}
}

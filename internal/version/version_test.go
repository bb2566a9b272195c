// ABOUTME: Tests for version information
// ABOUTME: Checks the product name and user agent format
package version

import (
	"strings"
	"testing"
)

func TestProduct(t *testing.T) {
	if Product != "livewave" {
		t.Errorf("expected product livewave, got %q", Product)
	}
}

func TestVersionIsSemver(t *testing.T) {
	parts := strings.Split(Version, ".")
	if len(parts) != 3 {
		t.Fatalf("expected major.minor.patch, got %q", Version)
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			t.Errorf("non-numeric version component %q in %q", p, Version)
		}
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if ua != Product+"/"+Version {
		t.Errorf("unexpected user agent %q", ua)
	}
	if strings.ContainsAny(ua, " \t\n") {
		t.Errorf("user agent must be a single token, got %q", ua)
	}
}

package auth

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

var clientVersionRE = regexp.MustCompile(`([-a-zA-Z]+)([0-9.]+)`)

// ClientSDK identifies the SDK that sent a request, e.g. "js1.9.2".
type ClientSDK struct {
	Name    string
	Version string
}

// ParseClientSDK parses a client version string. It returns nil when the
// string has no name/version pair or the version is not valid semver.
func ParseClientSDK(s string) *ClientSDK {
	m := clientVersionRE.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return nil
	}
	if !semver.IsValid("v" + m[2]) {
		return nil
	}
	return &ClientSDK{Name: m[1], Version: m[2]}
}

// String returns the SDK in its wire form.
func (s *ClientSDK) String() string {
	if s == nil {
		return ""
	}
	return s.Name + s.Version
}

// AtLeast reports whether s is the named SDK at version min or newer.
func (s *ClientSDK) AtLeast(name, min string) bool {
	if s == nil || s.Name != name {
		return false
	}
	return semver.Compare("v"+s.Version, "v"+min) >= 0
}

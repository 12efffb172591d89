package registry

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// acrNameRe only rejects names that cannot be a path segment of the
// management URL. Whether a registry exists is the management plane's call.
var acrNameRe = regexp.MustCompile(`^[a-zA-Z0-9]{1,50}$`)

// ValidateRegistryName checks an Azure Container Registry name.
func ValidateRegistryName(name string) error {
	if !acrNameRe.MatchString(name) {
		return fmt.Errorf("registry name %q must be 1-50 alphanumeric characters", name)
	}
	return nil
}

// ValidateRegistryURL checks that a registry URL is well-formed.
// Rejects strings with spaces, control characters, or invalid structure.
func ValidateRegistryURL(u string) error {
	if u == "" {
		return fmt.Errorf("registry URL is empty")
	}
	if containsControlChars(u) {
		return fmt.Errorf("registry URL %q contains control characters", u)
	}
	if strings.ContainsAny(u, " \t\n\r") {
		return fmt.Errorf("registry URL %q contains whitespace", u)
	}

	// Strip scheme for host validation
	host := u
	if idx := strings.Index(host, "://"); idx >= 0 {
		scheme := host[:idx]
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("registry URL %q has invalid scheme %q (expected http or https)", u, scheme)
		}
		host = host[idx+3:]
	}

	if idx := strings.IndexByte(host, '/'); idx >= 0 {
		host = host[:idx]
	}
	if host == "" {
		return fmt.Errorf("registry URL %q has empty host", u)
	}

	if strings.ContainsAny(host, " \t{}[]<>\"'`") {
		return fmt.Errorf("registry URL %q has invalid host characters", u)
	}

	return nil
}

// LoginServer reduces a registry URL to the host[/path] form image
// references use: no scheme, no trailing slash.
func LoginServer(u string) string {
	if idx := strings.Index(u, "://"); idx >= 0 {
		u = u[idx+3:]
	}
	return strings.TrimRight(u, "/")
}

func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

package build

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/sofmeright/edgefreight/src/process"
)

var toolVersionRe = regexp.MustCompile(`v?(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.\-+]+)?)`)

// VersionError reports an installed tool older than the accepted minimum.
type VersionError struct {
	Binary    string
	Installed string
	Minimum   string
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("%s %s is older than the required %s", e.Binary, e.Installed, e.Minimum)
}

// Version runs "<binary> --version" and parses the reported version.
func (t *Tool) Version(ctx context.Context) (*semver.Version, error) {
	res, err := t.Runner.Run(ctx, process.Command{
		Name:  t.Binary,
		Args:  []string{"--version"},
		Quiet: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s version: %w", t.Binary, err)
	}
	return ParseToolVersion(strings.Join(res.Lines, "\n"))
}

// CheckVersion fails when the installed tool is older than minimum.
// An empty minimum skips the check.
func (t *Tool) CheckVersion(ctx context.Context, minimum string) error {
	if minimum == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", minimum, err)
	}

	installed, err := t.Version(ctx)
	if err != nil {
		return err
	}
	if !constraint.Check(installed) {
		return &VersionError{Binary: t.Binary, Installed: installed.String(), Minimum: minimum}
	}
	return nil
}

// ParseToolVersion extracts the first semantic version from output such
// as "iotedgedev, version 3.3.7".
func ParseToolVersion(output string) (*semver.Version, error) {
	m := toolVersionRe.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("no version found in %q", strings.TrimSpace(output))
	}
	return semver.NewVersion(m[1])
}

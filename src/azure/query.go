package azure

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-kit/kit/log"

	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/process"
)

// Query is the read-only lookup surface behind the list commands, used to
// fill selection lists for pipeline parameters.
type Query interface {
	ResourceGroups(ctx context.Context) ([]string, error)
	Registries(ctx context.Context, resourceGroup string) ([]string, error)
	IoTHubs(ctx context.Context, resourceGroup string) ([]string, error)
	Devices(ctx context.Context, hubName string) ([]string, error)
}

// Explorer implements Query for one service principal.
type Explorer struct {
	SP       credentials.ServicePrincipal
	Runner   process.Runner
	AzBinary string
	Logger   log.Logger
}

// ResourceGroups implements Query.
func (e *Explorer) ResourceGroups(ctx context.Context) ([]string, error) {
	return ResourceGroups(ctx, e.SP)
}

// Registries implements Query.
func (e *Explorer) Registries(ctx context.Context, resourceGroup string) ([]string, error) {
	return NewRegistries().List(ctx, e.SP, resourceGroup)
}

// IoTHubs implements Query.
func (e *Explorer) IoTHubs(ctx context.Context, resourceGroup string) ([]string, error) {
	return IoTHubs(ctx, e.SP, resourceGroup)
}

// Devices implements Query. Device identities live in the hub's data
// plane, which is reached through the Azure CLI IoT extension.
func (e *Explorer) Devices(ctx context.Context, hubName string) ([]string, error) {
	session, err := Login(ctx, e.Runner, e.AzBinary, e.SP, e.Logger)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	cmd := session.Command("iot", "hub", "device-identity", "list",
		"--hub-name", hubName,
		"--query", "[].deviceId",
		"--output", "tsv")
	cmd.Quiet = true

	res, err := e.Runner.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("listing devices of %s: %w", hubName, err)
	}
	return ParseTSV(res.Lines), nil
}

// ParseTSV returns the non-empty first column of tsv output lines, sorted.
func ParseTSV(lines []string) []string {
	var out []string
	for _, l := range lines {
		field, _, _ := strings.Cut(strings.TrimSpace(l), "\t")
		if field != "" {
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}

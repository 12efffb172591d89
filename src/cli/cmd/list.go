package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/edgefreight/src/azure"
	"github.com/sofmeright/edgefreight/src/credentials"
	"github.com/sofmeright/edgefreight/src/logging"
	"github.com/sofmeright/edgefreight/src/process"
)

var listHubName string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List Azure resources for pipeline parameters",
	Long: `List the values accepted by pipeline parameters: resource groups,
container registries and IoT hubs in a resource group, and devices in a hub.
One value per line.`,
}

var listResourceGroupsCmd = &cobra.Command{
	Use:   "resource-groups",
	Short: "List resource groups in the subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, func(ctx context.Context, q azure.Query) ([]string, error) {
			return q.ResourceGroups(ctx)
		})
	},
}

var listRegistriesCmd = &cobra.Command{
	Use:   "registries",
	Short: "List container registries in a resource group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, func(ctx context.Context, q azure.Query) ([]string, error) {
			return q.Registries(ctx, cfg.Azure.ResourceGroup)
		})
	},
}

var listHubsCmd = &cobra.Command{
	Use:   "hubs",
	Short: "List IoT hubs in a resource group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, func(ctx context.Context, q azure.Query) ([]string, error) {
			return q.IoTHubs(ctx, cfg.Azure.ResourceGroup)
		})
	},
}

var listDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List device ids registered in an IoT hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		hub := listHubName
		if hub == "" {
			hub = cfg.Deploy.HubName
		}
		if hub == "" {
			return fmt.Errorf("--hub-name is required")
		}
		return runList(cmd, func(ctx context.Context, q azure.Query) ([]string, error) {
			return q.Devices(ctx, hub)
		})
	},
}

func init() {
	listDevicesCmd.Flags().StringVar(&listHubName, "hub-name", "", "IoT Hub name (default: deploy.hub_name)")

	listCmd.AddCommand(listResourceGroupsCmd, listRegistriesCmd, listHubsCmd, listDevicesCmd)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, list func(ctx context.Context, q azure.Query) ([]string, error)) error {
	ctx := cmd.Context()
	logger := logging.New(cmd.ErrOrStderr(), verbose)

	store, err := credentials.Open(ctx, cfg.Credentials)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	sp, err := credentials.NewResolver(store).ServicePrincipal(ctx, cfg.Azure.CredentialsID)
	if err != nil {
		return err
	}

	q := &azure.Explorer{
		SP:       sp,
		Runner:   process.NewExecutor(cmd.ErrOrStderr(), logger),
		AzBinary: cfg.Tool.AzBinary,
		Logger:   logger,
	}
	values, err := list(ctx, q)
	if err != nil {
		return err
	}
	for _, v := range values {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}
